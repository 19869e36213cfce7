// Package client provides the REST wrappers and the progress stream client for
// the course-web backend. Types mirror the backend wire protocol.
package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Student is a student record as returned by /students.
type Student struct {
	StudentID int64    `json:"studentId,omitempty"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone,omitempty"`
	Courses   []Course `json:"courses,omitempty"`
}

// Teacher is a teacher record as returned by /teachers.
type Teacher struct {
	TeacherID  int64  `json:"teacherId,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department,omitempty"`
}

// TeacherRef is the nested teacher carried by a course.
type TeacherRef struct {
	TeacherID int64  `json:"teacherId"`
	Name      string `json:"name,omitempty"`
}

// FormValue lets the form validator check a course's teacher by id.
func (r *TeacherRef) FormValue() any {
	if r == nil {
		return nil
	}
	return r.TeacherID
}

// Course is a course record as returned by /courses.
type Course struct {
	CourseID    int64       `json:"courseId,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Credits     int         `json:"credits"`
	Teacher     *TeacherRef `json:"teacher,omitempty"`
}

// Page is the paged envelope used by list endpoints that accept pageNumber
// and pageSize.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

// PageRequest selects a page. A nil *PageRequest asks for the server default.
type PageRequest struct {
	Number int
	Size   int
}

func (p *PageRequest) apply(q url.Values) {
	if p == nil {
		return
	}
	q.Set("pageNumber", strconv.Itoa(p.Number))
	q.Set("pageSize", strconv.Itoa(p.Size))
}

// PopularCourse is one row of /statistics/popular-courses.
type PopularCourse struct {
	CourseID     int64  `json:"courseId"`
	Name         string `json:"name"`
	TeacherName  string `json:"teacherName,omitempty"`
	StudentCount int    `json:"studentCount"`
}

// DataInfo summarises how many records the backend holds.
type DataInfo struct {
	Students    int `json:"students"`
	Teachers    int `json:"teachers"`
	Courses     int `json:"courses"`
	Enrollments int `json:"enrollments"`
}

// InitOptions are the query parameters of the data initialization operation.
type InitOptions struct {
	StudentCount int
	TeacherCount int
	CourseCount  int
}

// Values serialises the options to a query string. Zero counts are left out
// so the server applies its own defaults.
func (o InitOptions) Values() url.Values {
	q := url.Values{}
	if o.StudentCount > 0 {
		q.Set("studentCount", strconv.Itoa(o.StudentCount))
	}
	if o.TeacherCount > 0 {
		q.Set("teacherCount", strconv.Itoa(o.TeacherCount))
	}
	if o.CourseCount > 0 {
		q.Set("courseCount", strconv.Itoa(o.CourseCount))
	}
	return q
}

// --- Stream payload types ---

// Progress is the payload of a "progress" event. Raw holds the payload as
// received so operation-specific fields are not lost.
type Progress struct {
	Processed int             `json:"processed"`
	Total     int             `json:"total"`
	Message   string          `json:"message"`
	Raw       json.RawMessage `json:"-"`
}

// Percent returns Processed/Total clamped to [0,1].
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Processed) / float64(p.Total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Result is the payload of "complete" and "error" events, and of errors the
// client raises itself. Raw is nil for client-raised results.
type Result struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Raw     json.RawMessage `json:"-"`
}

// decodeProgress reads the known fields of an operation-defined payload.
// Only invalid JSON is an error: a known field of an unexpected type reads
// as its zero value, and the payload is kept verbatim in Raw.
func decodeProgress(data string) (Progress, error) {
	fields, err := decodePayload(data)
	if err != nil {
		return Progress{}, err
	}
	return Progress{
		Processed: intField(fields["processed"]),
		Total:     intField(fields["total"]),
		Message:   stringField(fields["message"]),
		Raw:       json.RawMessage(data),
	}, nil
}

func decodeResult(data string) (Result, error) {
	fields, err := decodePayload(data)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success: boolField(fields["success"]),
		Message: stringField(fields["message"]),
		Raw:     json.RawMessage(data),
	}, nil
}

// decodePayload returns the top-level fields of data, or nil when data is
// valid JSON but not an object.
func decodePayload(data string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, err
	}
	fields, _ := v.(map[string]any)
	return fields, nil
}

// intField truncates numbers and numeric strings toward zero.
func intField(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return int(f)
		}
	}
	return 0
}

func boolField(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(x))
		return b
	case float64:
		return x != 0
	}
	return false
}

func stringField(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	case float64, bool:
		return fmt.Sprint(x)
	}
	return ""
}

// DataInitResult is returned by the synchronous initialization endpoint.
type DataInitResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Info    DataInfo `json:"info"`
}
