// Package formcodec converts between candidate records and the flat,
// index-parameterised form encoding used across the review step.
//
// Field names (i = record index, j = document slot):
//
//	selected                 repeated, one value per chosen record index
//	name_i location_i start_date_i end_date_i notes_i location_url_i
//	regatta_id_i             document review only
//	doc_count_i              number of document slots of record i
//	doc_i_j                  presence flag: slot j was ticked
//	doc_type_i_j doc_url_i_j
package formcodec

import "fmt"

// FieldSelected is the repeated field carrying selected record indices.
const FieldSelected = "selected"

// MaxDocuments caps the number of document slots read per record.
const MaxDocuments = 100

// Field name builders. Both the preview renderer and Decode use them so the
// two sides of the round trip cannot drift apart.

func field(name string, i int) string { return fmt.Sprintf("%s_%d", name, i) }

func NameField(i int) string        { return field("name", i) }
func LocationField(i int) string    { return field("location", i) }
func StartDateField(i int) string   { return field("start_date", i) }
func EndDateField(i int) string     { return field("end_date", i) }
func NotesField(i int) string       { return field("notes", i) }
func LocationURLField(i int) string { return field("location_url", i) }
func RegattaIDField(i int) string   { return field("regatta_id", i) }
func DocCountField(i int) string    { return field("doc_count", i) }

func DocField(i, j int) string     { return fmt.Sprintf("doc_%d_%d", i, j) }
func DocTypeField(i, j int) string { return fmt.Sprintf("doc_type_%d_%d", i, j) }
func DocURLField(i, j int) string  { return fmt.Sprintf("doc_url_%d_%d", i, j) }
