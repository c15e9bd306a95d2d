package dataset

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// DecodeContents turns uploaded content into raw bytes. String content is
// assumed to be a data URL ("data:...;base64,<payload>") or plain base64.
func DecodeContents(contents string) ([]byte, error) {
	payload := contents
	if i := strings.Index(contents, ","); i >= 0 {
		payload = contents[i+1:]
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: decode base64 contents")
	}
	return b, nil
}

// FromCSV parses a CSV file. The first row is the header; empty cells
// become nil.
func FromCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read csv header")
	}
	t := New(header...)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "dataset: read csv row")
		}
		row := make(map[string]any, len(header))
		for j, c := range header {
			if j < len(record) && record[j] != "" {
				row[c] = record[j]
			} else {
				row[c] = nil
			}
		}
		t.Append(row)
	}
	return t, nil
}

// FromExcel parses the first sheet of an XLSX workbook. The first row is
// the header.
func FromExcel(b []byte) (*Table, error) {
	f, err := xlsx.OpenBinary(b)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("dataset: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("dataset: sheet is empty")
	}

	header := make([]string, len(sheet.Rows[0].Cells))
	for j, cell := range sheet.Rows[0].Cells {
		header[j] = cell.String()
	}
	t := New(header...)

	for _, r := range sheet.Rows[1:] {
		row := make(map[string]any, len(header))
		for j, c := range header {
			var v any
			if j < len(r.Cells) {
				if s := r.Cells[j].String(); s != "" {
					v = s
				}
			}
			row[c] = v
		}
		t.Append(row)
	}
	return t, nil
}

// jsonTitles maps 360Giving JSON field names onto the spreadsheet column
// titles the rest of the pipeline expects.
var jsonTitles = map[string]string{
	"id":                    "Identifier",
	"name":                  "Name",
	"title":                 "Title",
	"description":           "Description",
	"currency":              "Currency",
	"amountAwarded":         "Amount Awarded",
	"awardDate":             "Award Date",
	"recipientOrganization": "Recipient Org",
	"fundingOrganization":   "Funding Org",
	"grantProgramme":        "Grant Programme",
	"beneficiaryLocation":   "Beneficiary Location",
	"plannedDates":          "Planned Dates",
	"charityNumber":         "Charity Number",
	"companyNumber":         "Company Number",
	"postalCode":            "Postal Code",
	"startDate":             "Start Date",
	"endDate":               "End Date",
	"duration":              "Duration",
}

// FromJSON parses a 360Giving JSON file: either a {"grants": [...]}
// envelope or a bare array of grant objects. Nested objects and arrays are
// flattened into "Parent:0:Field" column names.
func FromJSON(b []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "dataset: decode json")
	}

	var grants []any
	switch d := doc.(type) {
	case map[string]any:
		g, ok := d["grants"].([]any)
		if !ok {
			return nil, eris.New("dataset: json object has no grants array")
		}
		grants = g
	case []any:
		grants = d
	default:
		return nil, eris.New("dataset: json is not an object or array")
	}

	t := New()
	for _, g := range grants {
		obj, ok := g.(map[string]any)
		if !ok {
			return nil, eris.New("dataset: grant entry is not an object")
		}
		row := make(map[string]any)
		flattenJSON("", obj, row)
		t.Append(row)
	}
	return t, nil
}

func flattenJSON(prefix string, v any, out map[string]any) {
	switch x := v.(type) {
	case map[string]any:
		for k, sub := range x {
			flattenJSON(joinPath(prefix, titleFor(k)), sub, out)
		}
	case []any:
		for i, sub := range x {
			flattenJSON(joinPath(prefix, strconv.Itoa(i)), sub, out)
		}
	case json.Number:
		if f, err := x.Float64(); err == nil {
			out[prefix] = f
		} else {
			out[prefix] = x.String()
		}
	case nil:
		out[prefix] = nil
	case bool:
		out[prefix] = strconv.FormatBool(x)
	default:
		out[prefix] = x
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

func titleFor(key string) string {
	if t, ok := jsonTitles[key]; ok {
		return t
	}
	return key
}
