package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryCatalogStore is a development-only in-memory store. No outbox events
// are produced.
type MemoryCatalogStore struct {
	mu      sync.RWMutex
	courses map[string]Course
	lessons map[string]Lesson
	now     func() time.Time
}

func NewMemoryCatalogStore() *MemoryCatalogStore {
	return &MemoryCatalogStore{
		courses: make(map[string]Course),
		lessons: make(map[string]Lesson),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryCatalogStore) ListCourses(_ context.Context, includeDrafts bool) ([]Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Course, 0, len(s.courses))
	for _, c := range s.courses {
		if c.Published || includeDrafts {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (s *MemoryCatalogStore) GetCourse(_ context.Context, id string) (Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[id]
	if !ok {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryCatalogStore) ListLessons(_ context.Context, courseID string) ([]Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Lesson
	for _, l := range s.lessons {
		if l.CourseID == courseID {
			out = append(out, s.withCourse(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (s *MemoryCatalogStore) GetLesson(_ context.Context, id string) (Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lessons[id]
	if !ok {
		return Lesson{}, ErrNotFound
	}
	return s.withCourse(l), nil
}

func (s *MemoryCatalogStore) withCourse(l Lesson) Lesson {
	l.Published = s.courses[l.CourseID].Published
	return l
}

func (s *MemoryCatalogStore) UpsertCourse(_ context.Context, c Course) (Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.courses {
		if id != c.ID && other.Slug == c.Slug {
			return Course{}, ErrSlugTaken
		}
	}
	c.UpdatedAt = s.now()
	s.courses[c.ID] = c
	return c, nil
}

func (s *MemoryCatalogStore) UpsertLesson(_ context.Context, l Lesson) (Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[l.CourseID]; !ok {
		return Lesson{}, ErrCourseNotFound
	}
	l.UpdatedAt = s.now()
	s.lessons[l.ID] = l
	return s.withCourse(l), nil
}

func (s *MemoryCatalogStore) DeleteLesson(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[id]; !ok {
		return ErrNotFound
	}
	delete(s.lessons, id)
	return nil
}

func (s *MemoryCatalogStore) Ping(context.Context) error { return nil }
