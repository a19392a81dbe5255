package workload

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// ParseQueries splits a JSON array of filter documents into its elements,
// e.g. `[{"status":"A"},{"qty":{"$lt":30}}]`.
func ParseQueries(jsonArray string) ([]string, error) {
	trimmed := strings.TrimSpace(jsonArray)
	if trimmed == "" {
		return nil, configErr("queries", errors.New("query array is empty"))
	}
	if !gjson.Valid(trimmed) {
		return nil, configErr("queries", errors.New("query is not valid JSON"))
	}
	parsed := gjson.Parse(trimmed)
	if !parsed.IsArray() {
		return nil, configErr("queries", errors.New("query must be a JSON array of documents"))
	}

	elems := parsed.Array()
	queries := make([]string, 0, len(elems))
	for _, elem := range elems {
		queries = append(queries, elem.Raw)
	}
	if len(queries) == 0 {
		return nil, configErr("queries", errors.New("query array is empty"))
	}
	return queries, nil
}

// LoadFile reads a JSON array of filter documents from path.
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query file: %w", err)
	}
	queries, err := ParseQueries(string(data))
	if err != nil {
		return nil, fmt.Errorf("query file %s: %w", path, err)
	}
	return queries, nil
}
