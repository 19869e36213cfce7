package client

import (
	"context"
	"fmt"
)

// FetchStudents fetches /students.
func (c *Client) FetchStudents(ctx context.Context) ([]Student, error) {
	var out []Student
	if err := c.get(ctx, "/students", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStudent fetches /students/{id}.
func (c *Client) GetStudent(ctx context.Context, id int64) (*Student, error) {
	var s Student
	if err := c.get(ctx, fmt.Sprintf("/students/%d", id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateStudent sends POST /students.
func (c *Client) CreateStudent(ctx context.Context, s Student) (*Student, error) {
	var out Student
	if err := c.post(ctx, "/students", nil, s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStudent sends PUT /students/{id}.
func (c *Client) UpdateStudent(ctx context.Context, id int64, s Student) (*Student, error) {
	var out Student
	if err := c.put(ctx, fmt.Sprintf("/students/%d", id), s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteStudent sends DELETE /students/{id}.
func (c *Client) DeleteStudent(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/students/%d", id))
}

// EnrollStudentToCourse sends POST /students/{studentId}/courses/{courseId}.
func (c *Client) EnrollStudentToCourse(ctx context.Context, studentID, courseID int64) error {
	return c.post(ctx, fmt.Sprintf("/students/%d/courses/%d", studentID, courseID), nil, nil, nil)
}

// RemoveStudentFromCourse sends DELETE /students/{studentId}/courses/{courseId}.
func (c *Client) RemoveStudentFromCourse(ctx context.Context, studentID, courseID int64) error {
	return c.delete(ctx, fmt.Sprintf("/students/%d/courses/%d", studentID, courseID))
}
