package mockserver

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Leo890728/course-web/internal/client"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
)

// Store is an in-memory school database. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	students    map[int64]*client.Student
	teachers    map[int64]*client.Teacher
	courses     map[int64]*client.Course
	enrollments map[int64]map[int64]bool // student id -> course ids
	nextID      int64
	rng         *rand.Rand
}

// NewStore creates an empty store. seed makes generated enrollments repeatable.
func NewStore(seed uint64) *Store {
	return &Store{
		students:    make(map[int64]*client.Student),
		teachers:    make(map[int64]*client.Teacher),
		courses:     make(map[int64]*client.Course),
		enrollments: make(map[int64]map[int64]bool),
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Store) newID() int64 {
	s.nextID++
	return s.nextID
}

// --- Students ---

func (s *Store) Students() []client.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]client.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, s.studentView(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

func (s *Store) Student(id int64) (client.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return client.Student{}, fmt.Errorf("student %d: %w", id, ErrNotFound)
	}
	return s.studentView(st), nil
}

func (s *Store) CreateStudent(st client.Student) (client.Student, error) {
	if err := checkPerson(st.Name, st.Email); err != nil {
		return client.Student{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st.StudentID = s.newID()
	st.Courses = nil
	s.students[st.StudentID] = &st
	return s.studentView(&st), nil
}

func (s *Store) UpdateStudent(id int64, st client.Student) (client.Student, error) {
	if err := checkPerson(st.Name, st.Email); err != nil {
		return client.Student{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[id]; !ok {
		return client.Student{}, fmt.Errorf("student %d: %w", id, ErrNotFound)
	}
	st.StudentID = id
	st.Courses = nil
	s.students[id] = &st
	return s.studentView(&st), nil
}

func (s *Store) DeleteStudent(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[id]; !ok {
		return fmt.Errorf("student %d: %w", id, ErrNotFound)
	}
	delete(s.students, id)
	delete(s.enrollments, id)
	return nil
}

func (s *Store) Enroll(studentID, courseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[studentID]; !ok {
		return fmt.Errorf("student %d: %w", studentID, ErrNotFound)
	}
	if _, ok := s.courses[courseID]; !ok {
		return fmt.Errorf("course %d: %w", courseID, ErrNotFound)
	}
	if s.enrollments[studentID][courseID] {
		return fmt.Errorf("student %d already enrolled in course %d: %w", studentID, courseID, ErrConflict)
	}
	s.enroll(studentID, courseID)
	return nil
}

func (s *Store) enroll(studentID, courseID int64) {
	if s.enrollments[studentID] == nil {
		s.enrollments[studentID] = make(map[int64]bool)
	}
	s.enrollments[studentID][courseID] = true
}

func (s *Store) Unenroll(studentID, courseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enrollments[studentID][courseID] {
		return fmt.Errorf("student %d is not enrolled in course %d: %w", studentID, courseID, ErrNotFound)
	}
	delete(s.enrollments[studentID], courseID)
	return nil
}

// studentView returns a copy of st with its enrolled courses filled in.
// Callers hold s.mu.
func (s *Store) studentView(st *client.Student) client.Student {
	out := *st
	out.Courses = nil
	for cid := range s.enrollments[st.StudentID] {
		if c, ok := s.courses[cid]; ok {
			out.Courses = append(out.Courses, *c)
		}
	}
	sort.Slice(out.Courses, func(i, j int) bool { return out.Courses[i].CourseID < out.Courses[j].CourseID })
	return out
}

// --- Teachers ---

// Teachers returns teachers whose name, email or department contains search
// (case-insensitive), ordered by id.
func (s *Store) Teachers(search string) []client.Teacher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search = strings.ToLower(search)
	out := make([]client.Teacher, 0, len(s.teachers))
	for _, t := range s.teachers {
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Name), search) &&
			!strings.Contains(strings.ToLower(t.Email), search) &&
			!strings.Contains(strings.ToLower(t.Department), search) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeacherID < out[j].TeacherID })
	return out
}

func (s *Store) Teacher(id int64) (client.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teachers[id]
	if !ok {
		return client.Teacher{}, fmt.Errorf("teacher %d: %w", id, ErrNotFound)
	}
	return *t, nil
}

func (s *Store) CreateTeacher(t client.Teacher) (client.Teacher, error) {
	if err := checkPerson(t.Name, t.Email); err != nil {
		return client.Teacher{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.TeacherID = s.newID()
	s.teachers[t.TeacherID] = &t
	return t, nil
}

func (s *Store) UpdateTeacher(id int64, t client.Teacher) (client.Teacher, error) {
	if err := checkPerson(t.Name, t.Email); err != nil {
		return client.Teacher{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teachers[id]; !ok {
		return client.Teacher{}, fmt.Errorf("teacher %d: %w", id, ErrNotFound)
	}
	t.TeacherID = id
	s.teachers[id] = &t
	for _, c := range s.courses {
		if c.Teacher != nil && c.Teacher.TeacherID == id {
			c.Teacher = &client.TeacherRef{TeacherID: id, Name: t.Name}
		}
	}
	return t, nil
}

// DeleteTeacher removes a teacher. Courses it taught are left without one.
func (s *Store) DeleteTeacher(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teachers[id]; !ok {
		return fmt.Errorf("teacher %d: %w", id, ErrNotFound)
	}
	delete(s.teachers, id)
	for _, c := range s.courses {
		if c.Teacher != nil && c.Teacher.TeacherID == id {
			c.Teacher = nil
		}
	}
	return nil
}

func (s *Store) TeacherCourses(id int64) ([]client.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.teachers[id]; !ok {
		return nil, fmt.Errorf("teacher %d: %w", id, ErrNotFound)
	}
	out := []client.Course{}
	for _, c := range s.courses {
		if c.Teacher != nil && c.Teacher.TeacherID == id {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, nil
}

// --- Courses ---

func (s *Store) Courses() []client.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]client.Course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out
}

func (s *Store) Course(id int64) (client.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[id]
	if !ok {
		return client.Course{}, fmt.Errorf("course %d: %w", id, ErrNotFound)
	}
	return *c, nil
}

func (s *Store) CreateCourse(c client.Course) (client.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCourse(&c); err != nil {
		return client.Course{}, err
	}
	c.CourseID = s.newID()
	s.courses[c.CourseID] = &c
	return c, nil
}

func (s *Store) UpdateCourse(id int64, c client.Course) (client.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[id]; !ok {
		return client.Course{}, fmt.Errorf("course %d: %w", id, ErrNotFound)
	}
	if err := s.checkCourse(&c); err != nil {
		return client.Course{}, err
	}
	c.CourseID = id
	s.courses[id] = &c
	return c, nil
}

func (s *Store) DeleteCourse(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[id]; !ok {
		return fmt.Errorf("course %d: %w", id, ErrNotFound)
	}
	delete(s.courses, id)
	for _, set := range s.enrollments {
		delete(set, id)
	}
	return nil
}

func (s *Store) CourseStudents(id int64) ([]client.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.courses[id]; !ok {
		return nil, fmt.Errorf("course %d: %w", id, ErrNotFound)
	}
	out := []client.Student{}
	for sid, set := range s.enrollments {
		if set[id] {
			if st, ok := s.students[sid]; ok {
				v := *st
				v.Courses = nil
				out = append(out, v)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// checkCourse validates c and resolves its teacher name. Callers hold s.mu.
func (s *Store) checkCourse(c *client.Course) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("course name is required: %w", ErrInvalid)
	}
	if c.Credits < 0 {
		return fmt.Errorf("credits must not be negative: %w", ErrInvalid)
	}
	if c.Teacher != nil {
		t, ok := s.teachers[c.Teacher.TeacherID]
		if !ok {
			return fmt.Errorf("teacher %d: %w", c.Teacher.TeacherID, ErrNotFound)
		}
		c.Teacher = &client.TeacherRef{TeacherID: t.TeacherID, Name: t.Name}
	}
	return nil
}

// --- Statistics and bulk data ---

// PopularCourses returns up to limit courses ordered by enrollment count.
func (s *Store) PopularCourses(limit int) []client.PopularCourse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[int64]int, len(s.courses))
	for _, set := range s.enrollments {
		for cid := range set {
			counts[cid]++
		}
	}
	out := make([]client.PopularCourse, 0, len(s.courses))
	for _, c := range s.courses {
		pc := client.PopularCourse{CourseID: c.CourseID, Name: c.Name, StudentCount: counts[c.CourseID]}
		if c.Teacher != nil {
			pc.TeacherName = c.Teacher.Name
		}
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentCount != out[j].StudentCount {
			return out[i].StudentCount > out[j].StudentCount
		}
		return out[i].CourseID < out[j].CourseID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) Info() client.DataInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := client.DataInfo{
		Students: len(s.students),
		Teachers: len(s.teachers),
		Courses:  len(s.courses),
	}
	for _, set := range s.enrollments {
		info.Enrollments += len(set)
	}
	return info
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students = make(map[int64]*client.Student)
	s.teachers = make(map[int64]*client.Teacher)
	s.courses = make(map[int64]*client.Course)
	s.enrollments = make(map[int64]map[int64]bool)
}

// GenerateReport is called after every generated record.
type GenerateReport func(processed, total int, message string) error

// Generate adds opts.TeacherCount teachers, then courses, then students, each
// student enrolled in up to three random courses. tick is slept between
// records. Generation stops early if ctx is done or report fails.
func (s *Store) Generate(ctx context.Context, opts client.InitOptions, tick time.Duration, report GenerateReport) error {
	total := opts.TeacherCount + opts.CourseCount + opts.StudentCount
	processed := 0

	step := func(message string) error {
		processed++
		if report != nil {
			if err := report(processed, total, message); err != nil {
				return err
			}
		}
		if tick > 0 {
			t := time.NewTimer(tick)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
		return ctx.Err()
	}

	var teacherIDs []int64
	for i := 0; i < opts.TeacherCount; i++ {
		s.mu.Lock()
		id := s.newID()
		s.teachers[id] = &client.Teacher{
			TeacherID:  id,
			Name:       fmt.Sprintf("Teacher %d", id),
			Email:      fmt.Sprintf("teacher%d@school.example", id),
			Department: departments[i%len(departments)],
		}
		s.mu.Unlock()
		teacherIDs = append(teacherIDs, id)
		if err := step(fmt.Sprintf("created teacher %d", id)); err != nil {
			return err
		}
	}

	var courseIDs []int64
	for i := 0; i < opts.CourseCount; i++ {
		s.mu.Lock()
		id := s.newID()
		c := &client.Course{
			CourseID: id,
			Name:     fmt.Sprintf("%s %d", subjects[i%len(subjects)], 100+i),
			Credits:  1 + i%4,
		}
		if len(teacherIDs) > 0 {
			tid := teacherIDs[i%len(teacherIDs)]
			c.Teacher = &client.TeacherRef{TeacherID: tid, Name: s.teachers[tid].Name}
		}
		s.courses[id] = c
		s.mu.Unlock()
		courseIDs = append(courseIDs, id)
		if err := step(fmt.Sprintf("created course %d", id)); err != nil {
			return err
		}
	}

	for i := 0; i < opts.StudentCount; i++ {
		s.mu.Lock()
		id := s.newID()
		s.students[id] = &client.Student{
			StudentID: id,
			Name:      fmt.Sprintf("Student %d", id),
			Email:     fmt.Sprintf("student%d@school.example", id),
		}
		if n := len(courseIDs); n > 0 {
			for range 1 + s.rng.IntN(min(3, n)) {
				s.enroll(id, courseIDs[s.rng.IntN(n)])
			}
		}
		s.mu.Unlock()
		if err := step(fmt.Sprintf("created student %d", id)); err != nil {
			return err
		}
	}
	return nil
}

var departments = []string{"Mathematics", "Physics", "Literature", "History", "Computer Science"}

var subjects = []string{"Calculus", "Mechanics", "Poetry", "World History", "Algorithms", "Databases"}

func checkPerson(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required: %w", ErrInvalid)
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("email %q is not valid: %w", email, ErrInvalid)
	}
	return nil
}
