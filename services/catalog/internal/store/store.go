package store

import (
	"context"
	"errors"
	"time"
)

// Lesson kinds. Every kind is a playable content item with its own progress.
const (
	KindLesson    = "lesson"
	KindPodcast   = "podcast"
	KindGroupCall = "group_call"
)

// Outbox event types, published on the CATALOG_EVENTS stream.
const (
	EventLessonUpserted = "catalog.lesson.upserted"
	EventLessonDeleted  = "catalog.lesson.deleted"
)

var (
	ErrNotFound       = errors.New("catalog: not found")
	ErrCourseNotFound = errors.New("catalog: course not found")
	ErrSlugTaken      = errors.New("catalog: slug already in use")
)

type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Published   bool      `json:"published"`
	Position    int       `json:"position"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Lesson struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"courseId"`
	Kind            string    `json:"kind"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	MuxPlaybackID   string    `json:"-"`
	DurationSeconds int       `json:"durationSeconds"`
	Position        int       `json:"position"`
	UpdatedAt       time.Time `json:"updatedAt"`
	// Published mirrors the parent course.
	Published bool `json:"published"`
}

// LessonEvent is the outbox payload for lesson changes.
type LessonEvent struct {
	ID              string `json:"id"`
	CourseID        string `json:"courseId"`
	DurationSeconds int    `json:"durationSeconds"`
}

// CatalogStore defines all persistence operations for the catalog service.
type CatalogStore interface {
	// ListCourses returns courses ordered by position; unpublished ones only when includeDrafts.
	ListCourses(ctx context.Context, includeDrafts bool) ([]Course, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	ListLessons(ctx context.Context, courseID string) ([]Lesson, error)
	GetLesson(ctx context.Context, id string) (Lesson, error)

	UpsertCourse(ctx context.Context, c Course) (Course, error)
	// UpsertLesson returns ErrCourseNotFound when the parent course is missing.
	UpsertLesson(ctx context.Context, l Lesson) (Lesson, error)
	DeleteLesson(ctx context.Context, id string) error

	Ping(ctx context.Context) error
}
