package client

import (
	"context"
	"fmt"
	"net/url"
)

// FetchCourses fetches /courses, paged when page is non-nil.
func (c *Client) FetchCourses(ctx context.Context, page *PageRequest) (*Page[Course], error) {
	q := url.Values{}
	page.apply(q)
	var out Page[Course]
	if err := c.get(ctx, "/courses", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCourse fetches /courses/{id}.
func (c *Client) GetCourse(ctx context.Context, id int64) (*Course, error) {
	var out Course
	if err := c.get(ctx, fmt.Sprintf("/courses/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCourse sends POST /courses.
func (c *Client) CreateCourse(ctx context.Context, course Course) (*Course, error) {
	var out Course
	if err := c.post(ctx, "/courses", nil, course, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCourse sends PUT /courses/{id}.
func (c *Client) UpdateCourse(ctx context.Context, id int64, course Course) (*Course, error) {
	var out Course
	if err := c.put(ctx, fmt.Sprintf("/courses/%d", id), course, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCourse sends DELETE /courses/{id}.
func (c *Client) DeleteCourse(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/courses/%d", id))
}

// GetCourseStudents fetches /courses/{id}/Students. The capital S is what the
// backend routes.
func (c *Client) GetCourseStudents(ctx context.Context, id int64, page *PageRequest) (*Page[Student], error) {
	q := url.Values{}
	page.apply(q)
	var out Page[Student]
	if err := c.get(ctx, fmt.Sprintf("/courses/%d/Students", id), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
