// Package shelter turns raw shelter tables into validated shelters and ranks
// them by distance from a reference coordinate.
package shelter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/mr1hm/go-shelter-finder/internal/models"
)

// ErrDataIntegrity marks a record that cannot become a valid Shelter.
var ErrDataIntegrity = errors.New("data integrity")

// Field layout: name,address,phone,type,latitude,longitude
const (
	fieldName = iota
	fieldAddress
	fieldPhone
	fieldType
	fieldLatitude
	fieldLongitude
	fieldCount
)

// RowError describes a record that was skipped.
type RowError struct {
	Line     int // line in the raw table
	Position int // record position, which is also the id the row would have had
	Err      error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

type Result struct {
	Shelters []models.Shelter
	Skipped  []RowError
}

func (r Result) SkippedCount() int {
	return len(r.Skipped)
}

type Parser struct {
	fallback    []models.HazardType
	recordTypes bool
	typeSep     string
}

type Option func(*Parser)

// WithFallbackTypes sets the hazard types assigned to records that declare none.
func WithFallbackTypes(types ...models.HazardType) Option {
	return func(p *Parser) {
		p.fallback = slices.Clone(types)
	}
}

// WithRecordTypes reads hazard tags from the record's type field, split on
// sep. An empty sep keeps the default "|".
func WithRecordTypes(sep string) Option {
	return func(p *Parser) {
		p.recordTypes = true
		if sep != "" {
			p.typeSep = sep
		}
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		fallback: slices.Clone(models.DefaultHazards),
		typeSep:  "|",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse converts raw into shelters in source order. Malformed records are
// skipped and reported; they never abort the parse.
func (p *Parser) Parse(raw string) Result {
	reader := csv.NewReader(strings.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	result := Result{Shelters: []models.Shelter{}}
	position := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		var parseErr *csv.ParseError
		if err != nil {
			if !errors.As(err, &parseErr) {
				break
			}
			position++
			result.Skipped = append(result.Skipped, RowError{
				Line:     parseErr.StartLine,
				Position: position,
				Err:      fmt.Errorf("%w: %v", ErrDataIntegrity, parseErr.Err),
			})
			continue
		}

		if isBlank(record) {
			continue
		}
		s, err := p.parseRecord(record)
		if err != nil && isComment(record) {
			continue
		}
		position++
		line, _ := reader.FieldPos(0)

		if err != nil {
			result.Skipped = append(result.Skipped, RowError{Line: line, Position: position, Err: err})
			continue
		}
		s.ID = strconv.Itoa(position)
		result.Shelters = append(result.Shelters, s)
	}

	return result
}

func (p *Parser) parseRecord(record []string) (models.Shelter, error) {
	if len(record) < fieldCount {
		return models.Shelter{}, fmt.Errorf("%w: expected %d fields, got %d", ErrDataIntegrity, fieldCount, len(record))
	}

	name := strings.TrimSpace(record[fieldName])
	if name == "" {
		return models.Shelter{}, fmt.Errorf("%w: empty name", ErrDataIntegrity)
	}
	address := strings.TrimSpace(record[fieldAddress])
	if address == "" {
		return models.Shelter{}, fmt.Errorf("%w: empty address", ErrDataIntegrity)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(record[fieldLatitude]), 64)
	if err != nil {
		return models.Shelter{}, fmt.Errorf("%w: latitude %q is not a number", ErrDataIntegrity, record[fieldLatitude])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(record[fieldLongitude]), 64)
	if err != nil {
		return models.Shelter{}, fmt.Errorf("%w: longitude %q is not a number", ErrDataIntegrity, record[fieldLongitude])
	}
	if !(models.Coordinate{Latitude: lat, Longitude: lng}).Valid() {
		return models.Shelter{}, fmt.Errorf("%w: coordinate (%v, %v) out of range", ErrDataIntegrity, lat, lng)
	}

	types, inferred := p.hazardTypes(record[fieldType])

	return models.Shelter{
		Name:          name,
		Address:       address,
		Phone:         strings.TrimSpace(record[fieldPhone]),
		Latitude:      lat,
		Longitude:     lng,
		Types:         types,
		TypesInferred: inferred,
	}, nil
}

func (p *Parser) hazardTypes(field string) ([]models.HazardType, bool) {
	if p.recordTypes {
		var types []models.HazardType
		for _, tag := range strings.Split(field, p.typeSep) {
			t := models.HazardType(strings.ToLower(strings.TrimSpace(tag)))
			if t == "" || slices.Contains(types, t) {
				continue
			}
			types = append(types, t)
		}
		if len(types) > 0 {
			return types, false
		}
	}
	return slices.Clone(p.fallback), true
}

// isComment reports whether record opens with '#'. Such a line is only a
// comment when it does not also parse as a shelter.
func isComment(record []string) bool {
	return strings.HasPrefix(strings.TrimSpace(record[0]), "#")
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
