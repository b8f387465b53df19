package storage

import (
	"fmt"
	"path"
	"regexp"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildDataFilePath returns the object key for a pipeline output data file.
// Output files live under the run's dataset so that dropping the dataset can
// also clean up its objects.
func BuildDataFilePath(datasetID, tableName string, sequence int) (string, error) {
	if err := validatePathComponent(datasetID, "dataset id"); err != nil {
		return "", err
	}
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	if sequence < 0 {
		return "", fmt.Errorf("sequence must be >= 0")
	}
	return path.Join(
		datasetID,
		tableName,
		fmt.Sprintf("part-%05d.parquet", sequence),
	), nil
}

// BuildTablePrefix returns the object key prefix holding every data file of
// one table within a dataset.
func BuildTablePrefix(datasetID, tableName string) (string, error) {
	if err := validatePathComponent(datasetID, "dataset id"); err != nil {
		return "", err
	}
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	return path.Join(datasetID, tableName) + "/", nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
