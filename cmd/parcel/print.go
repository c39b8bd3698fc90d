package main

import (
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/parcel/pkg/models"
)

// printRecords writes one JSON object per line
func printRecords(w io.Writer, records []models.Record) error {
	enc := gojson.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
