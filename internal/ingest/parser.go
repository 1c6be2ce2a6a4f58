package ingest

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/abramin/proftree/internal/store"
)

const (
	DefaultHeaderPrefix = "Function Stack;"
	DefaultDelimiter    = ";"

	maxLineSize = 16 * 1024 * 1024
)

// Profile is a parsed top-down dump ready to be written to a store.
type Profile struct {
	CPUTime       float64
	Functions     []store.Function
	Relationships []store.Relationship
}

// Parser reads semicolon-separated top-down CSV dumps.
// Lines before the header are ignored; each data line is
// "<indented stack>;<total>;<self>;<signature>[;...]".
type Parser struct {
	HeaderPrefix string
	Delimiter    string
}

// NewParser returns a parser with the default header and delimiter.
func NewParser() *Parser {
	return &Parser{HeaderPrefix: DefaultHeaderPrefix, Delimiter: DefaultDelimiter}
}

type frame struct {
	id     store.FunctionID
	indent int
}

// Parse reads a whole dump.
func (p *Parser) Parse(r io.Reader) (*Profile, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	prof := &Profile{}
	lineNumber := 0
	inData := false
	cpuKnown := false
	var parents []frame

	for sc.Scan() {
		lineNumber++
		line := sc.Text()

		if !inData {
			if strings.HasPrefix(line, p.HeaderPrefix) {
				inData = true
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.Split(line, p.Delimiter)

		// The first data line is the overall total.
		if !cpuKnown {
			cpuKnown = true
			prof.CPUTime = 1.0
			if len(parts) >= 2 {
				if v, err := parseSeconds(parts[1]); err == nil && v != 0 {
					prof.CPUTime = v
				}
			}
		}

		if len(parts) < 4 {
			continue
		}

		stack := parts[0]
		signature := strings.TrimSpace(parts[3])
		indent := leadingSpaces(stack)
		total, _ := parseSeconds(parts[1])
		self, _ := parseSeconds(parts[2])

		fn := store.Function{
			ID:            FunctionID(signature, lineNumber),
			FunctionStack: stack,
			ShortName:     strings.TrimSpace(stack),
			FullSignature: signature,
			TotalTime:     total,
			SelfTime:      self,
			Percentage:    total / prof.CPUTime * 100.0,
			IndentLevel:   indent,
			LineNumber:    lineNumber,
		}
		prof.Functions = append(prof.Functions, fn)

		for len(parents) > 0 && parents[len(parents)-1].indent >= indent {
			parents = parents[:len(parents)-1]
		}

		rel := store.Relationship{ChildID: fn.ID}
		if len(parents) > 0 {
			parent := parents[len(parents)-1].id
			rel.ParentID = &parent
		}
		prof.Relationships = append(prof.Relationships, rel)

		parents = append(parents, frame{id: fn.ID, indent: indent})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading line %d: %w", lineNumber+1, err)
	}
	if !inData {
		return nil, fmt.Errorf("header %q not found", p.HeaderPrefix)
	}
	if prof.CPUTime == 0 {
		prof.CPUTime = 1.0
	}
	return prof, nil
}

// FunctionID derives the stable id of a dump row from its signature and line number.
func FunctionID(signature string, lineNumber int) store.FunctionID {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%d", signature, lineNumber)))
	return store.FunctionID(hex.EncodeToString(sum[:])[:16])
}

// parseSeconds parses a time cell. Unparsable cells are reported as an error with value 0.
func parseSeconds(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func leadingSpaces(s string) int {
	return len(s) - len(strings.TrimLeft(s, " "))
}
