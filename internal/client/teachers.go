package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// FetchTeachers fetches /teachers. Paging parameters are only sent when page
// is non-nil, and search only when it is not blank.
func (c *Client) FetchTeachers(ctx context.Context, page *PageRequest, search string) (*Page[Teacher], error) {
	q := url.Values{}
	page.apply(q)
	if s := strings.TrimSpace(search); s != "" {
		q.Set("search", s)
	}
	var out Page[Teacher]
	if err := c.get(ctx, "/teachers", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTeacher fetches /teachers/{id}.
func (c *Client) GetTeacher(ctx context.Context, id int64) (*Teacher, error) {
	var t Teacher
	if err := c.get(ctx, fmt.Sprintf("/teachers/%d", id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTeacher sends POST /teachers.
func (c *Client) CreateTeacher(ctx context.Context, t Teacher) (*Teacher, error) {
	var out Teacher
	if err := c.post(ctx, "/teachers", nil, t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTeacher sends PUT /teachers/{id}.
func (c *Client) UpdateTeacher(ctx context.Context, id int64, t Teacher) (*Teacher, error) {
	var out Teacher
	if err := c.put(ctx, fmt.Sprintf("/teachers/%d", id), t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTeacher sends DELETE /teachers/{id}.
func (c *Client) DeleteTeacher(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/teachers/%d", id))
}

// GetTeacherCourses fetches /teachers/{id}/courses.
func (c *Client) GetTeacherCourses(ctx context.Context, id int64) ([]Course, error) {
	var out []Course
	if err := c.get(ctx, fmt.Sprintf("/teachers/%d/courses", id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
