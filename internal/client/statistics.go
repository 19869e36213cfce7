package client

import (
	"context"
	"net/url"
	"strconv"
)

// DefaultPopularLimit is used when GetPopularCourses gets a non-positive limit.
const DefaultPopularLimit = 10

// GetPopularCourses fetches /statistics/popular-courses.
func (c *Client) GetPopularCourses(ctx context.Context, limit int) ([]PopularCourse, error) {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var out []PopularCourse
	if err := c.get(ctx, "/statistics/popular-courses", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
