package chunkfile

import "os"

// removeIfExists removes path, treating "already gone" as success.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return err
}
