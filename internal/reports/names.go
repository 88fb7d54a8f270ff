package reports

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
	"xeroreports/internal/db"
)

type Kind string

const (
	ACTIVITY_STATEMENT       Kind = db.REPORT_ACTIVITY_STATEMENT
	PAYROLL_ACTIVITY_SUMMARY Kind = db.REPORT_PAYROLL_ACTIVITY_SUMMARY
)

var Kinds = []Kind{ACTIVITY_STATEMENT, PAYROLL_ACTIVITY_SUMMARY}

func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

const (
	PERIOD_LAYOUT = "January 2006"

	maxSanitizedLength = 100
	minExcelSize       = 1000
)

const invalidFilenameChars = `<>:"/\|?*`

// Sanitize makes name safe to embed in a file name.
func Sanitize(name string) string {
	result := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidFilenameChars, r) {
			return -1
		}
		if r == ' ' {
			return '_'
		}
		return r
	}, name)
	for strings.Contains(result, "__") {
		result = strings.ReplaceAll(result, "__", "_")
	}
	if utf8.RuneCountInString(result) > maxSanitizedLength {
		result = string([]rune(result)[:maxSanitizedLength])
	}
	return result
}

// reportName turns activity_statement into Activity_Statement.
func reportName(kind Kind) string {
	words := strings.Split(string(kind), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, "_")
}

// CanonicalName is {Report_Name}_{tenant}[_{period}]_{YYYYmmdd_HHMMSS}.xlsx.
func CanonicalName(kind Kind, tenant, period string, at time.Time) string {
	parts := []string{reportName(kind), Sanitize(tenant)}
	if period != "" {
		parts = append(parts, Sanitize(period))
	}
	parts = append(parts, at.Format("20060102_150405"))
	return strings.Join(parts, "_") + ".xlsx"
}

// PreviousMonth returns the first day of the month before now's month.
func PreviousMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, now.Location())
}

var (
	errExcelTooSmall  = errors.New("file too small")
	errExcelExtension = errors.New("not an excel extension")
	errExcelHeader    = errors.New("missing zip header")
)

// ValidateExcel checks that path looks like an exported spreadsheet, it returns nil when it
// does.
func ValidateExcel(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" && ext != ".xls" {
		return fmt.Errorf("%w: %s", errExcelExtension, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}
	if stat.Size() < minExcelSize {
		return fmt.Errorf("%w: %d bytes", errExcelTooSmall, stat.Size())
	}

	header := make([]byte, 2)
	_, err = f.Read(header)
	if err != nil {
		return err
	}
	if !bytes.Equal(header, []byte("PK")) {
		return errExcelHeader
	}
	return nil
}
