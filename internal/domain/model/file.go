package model

import "time"

// ColumnMap records which upload header feeds each prospect field. Empty means absent.
type ColumnMap struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Company         string `json:"company"`
	Website         string `json:"website"`
	ActivityContext string `json:"activityContext"`
	Email           string `json:"email"`
}

// UploadedFile is a stored prospect list.
type UploadedFile struct {
	ID           string
	OriginalName string
	StoredPath   string
	Headers      []string
	Columns      ColumnMap
	TotalRows    int
	CreatedAt    time.Time
}

// RowIssue describes a row that lacks required values.
type RowIssue struct {
	RowIndex        int      `json:"rowIndex"` // 1-based line number, header included
	MissingRequired []string `json:"missingRequired"`
	MissingContext  bool     `json:"missingContext"`
}
