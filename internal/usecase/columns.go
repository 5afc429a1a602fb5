package usecase

import (
	"regexp"
	"strings"

	"coldmail-copywriter/internal/domain/model"
)

var (
	firstNameHeaders = []string{"first name", "firstname", "first"}
	lastNameHeaders  = []string{"last name", "lastname", "last"}
	companyHeaders   = []string{"company", "company name", "organization", "business"}
	websiteHeaders   = []string{"website / activity url", "website or activity url", "website", "website url", "url", "site", "domain"}
	activityHeaders  = []string{"activity context", "context", "activity", "notes", "personalization context"}
	emailHeaders     = []string{"email", "email address"}
)

var spaceRe = regexp.MustCompile(`\s+`)

func normalizeHeader(h string) string {
	return spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(h)), " ")
}

// findColumn tries every candidate for an exact match first, then a loose
// contains match in either direction.
func findColumn(headers []string, candidates []string) string {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = normalizeHeader(h)
	}
	for _, c := range candidates {
		cn := normalizeHeader(c)
		for i, h := range norm {
			if h != "" && h == cn {
				return headers[i]
			}
		}
	}
	for _, c := range candidates {
		cn := normalizeHeader(c)
		for i, h := range norm {
			if h != "" && (strings.Contains(h, cn) || strings.Contains(cn, h)) {
				return headers[i]
			}
		}
	}
	return ""
}

// DeriveColumnMap guesses which header feeds each prospect field.
func DeriveColumnMap(headers []string) model.ColumnMap {
	return model.ColumnMap{
		FirstName:       findColumn(headers, firstNameHeaders),
		LastName:        findColumn(headers, lastNameHeaders),
		Company:         findColumn(headers, companyHeaders),
		Website:         findColumn(headers, websiteHeaders),
		ActivityContext: findColumn(headers, activityHeaders),
		Email:           findColumn(headers, emailHeaders),
	}
}

// MissingColumns lists the required columns the map could not resolve, by display name.
func MissingColumns(m model.ColumnMap) []string {
	var missing []string
	if m.FirstName == "" {
		missing = append(missing, "First Name")
	}
	if m.LastName == "" {
		missing = append(missing, "Last Name")
	}
	if m.Company == "" {
		missing = append(missing, "Company")
	}
	if m.Website == "" && m.ActivityContext == "" {
		missing = append(missing, "Website / Activity URL or Activity Context")
	}
	return missing
}

const maxRowIssues = 5

// ValidateRows reports up to five rows lacking required values or any context.
// RowIndex is the 1-based line number with the header counted.
func ValidateRows(rows []map[string]string, m model.ColumnMap) []model.RowIssue {
	var issues []model.RowIssue
	for i, row := range rows {
		var missing []string
		if blank(cell(row, m.FirstName)) {
			missing = append(missing, "First Name")
		}
		if blank(cell(row, m.LastName)) {
			missing = append(missing, "Last Name")
		}
		if blank(cell(row, m.Company)) {
			missing = append(missing, "Company")
		}
		hasContext := true
		switch {
		case m.Website != "" && m.ActivityContext != "":
			hasContext = !blank(cell(row, m.Website)) || !blank(cell(row, m.ActivityContext))
		case m.Website != "":
			hasContext = !blank(cell(row, m.Website))
		case m.ActivityContext != "":
			hasContext = !blank(cell(row, m.ActivityContext))
		}
		if len(missing) > 0 || !hasContext {
			issues = append(issues, model.RowIssue{RowIndex: i + 2, MissingRequired: missing, MissingContext: !hasContext})
			if len(issues) >= maxRowIssues {
				break
			}
		}
	}
	return issues
}

func cell(row map[string]string, col string) string {
	if col == "" {
		return ""
	}
	return row[col]
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
