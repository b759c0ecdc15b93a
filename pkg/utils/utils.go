package utils

import "os"

func GetDefaultChartDir() string {
	tmpDir, err := os.MkdirTemp("", "deckdrill-charts-*")
	if err != nil {
		// If we can't create a temp directory, fall back to local directory
		return "deckdrill-charts"
	}
	return tmpDir
}
