package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryCatalogStore mirrors the Postgres store's semantics for tests.
type InMemoryCatalogStore struct {
	mu       sync.RWMutex
	courses  map[uuid.UUID]Course
	chapters map[uuid.UUID]Chapter
	videos   map[uuid.UUID]Video
}

func NewInMemoryCatalogStore() *InMemoryCatalogStore {
	return &InMemoryCatalogStore{
		courses:  make(map[uuid.UUID]Course),
		chapters: make(map[uuid.UUID]Chapter),
		videos:   make(map[uuid.UUID]Video),
	}
}

// ── Course writes ──────────────────────────────────────────────────────────

func (s *InMemoryCatalogStore) CreateCourse(_ context.Context, title, description string) (Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slug := Slugify(title)
	for _, c := range s.courses {
		if c.DeletedAt == nil && c.Slug == slug {
			return Course{}, fmt.Errorf("slug %q: %w", slug, ErrConflict)
		}
	}

	now := time.Now().UTC()
	c := Course{
		ID:          uuid.New(),
		Title:       title,
		Slug:        slug,
		Description: description,
		Published:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.courses[c.ID] = c
	return c, nil
}

func (s *InMemoryCatalogStore) UpdateCourse(_ context.Context, id uuid.UUID, title, description string) (Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[id]
	if !ok || c.DeletedAt != nil {
		return Course{}, ErrNotFound
	}
	slug := Slugify(title)
	for _, other := range s.courses {
		if other.ID != id && other.DeletedAt == nil && other.Slug == slug {
			return Course{}, fmt.Errorf("slug %q: %w", slug, ErrConflict)
		}
	}
	c.Title = title
	c.Slug = slug
	c.Description = description
	c.UpdatedAt = time.Now().UTC()
	s.courses[id] = c
	return c, nil
}

func (s *InMemoryCatalogStore) SetCoursePublished(_ context.Context, id uuid.UUID, published bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[id]
	if !ok || c.DeletedAt != nil {
		return ErrNotFound
	}
	c.Published = published
	c.UpdatedAt = time.Now().UTC()
	s.courses[id] = c
	return nil
}

func (s *InMemoryCatalogStore) SoftDeleteCourse(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[id]
	if !ok || c.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	c.DeletedAt = &now
	c.UpdatedAt = now
	s.courses[id] = c
	return nil
}

// ── Course reads ───────────────────────────────────────────────────────────

func (s *InMemoryCatalogStore) ListCourses(_ context.Context, publishedOnly bool) ([]Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Course
	for _, c := range s.courses {
		if c.DeletedAt != nil {
			continue
		}
		if publishedOnly && !c.Published {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryCatalogStore) GetCourseBySlug(_ context.Context, slug string) (Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.courses {
		if c.DeletedAt == nil && c.Slug == slug {
			return c, nil
		}
	}
	return Course{}, ErrNotFound
}

// ── Chapter writes ─────────────────────────────────────────────────────────

func (s *InMemoryCatalogStore) CreateChapter(_ context.Context, courseID uuid.UUID, title string) (Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[courseID]
	if !ok || c.DeletedAt != nil {
		return Chapter{}, ErrNotFound
	}

	maxPos := 0
	for _, ch := range s.chapters {
		if ch.CourseID == courseID && ch.DeletedAt == nil && ch.Position > maxPos {
			maxPos = ch.Position
		}
	}

	now := time.Now().UTC()
	ch := Chapter{
		ID:        uuid.New(),
		CourseID:  courseID,
		Title:     title,
		Position:  maxPos + 1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.chapters[ch.ID] = ch
	return ch, nil
}

func (s *InMemoryCatalogStore) UpdateChapter(_ context.Context, id uuid.UUID, title string) (Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.chapters[id]
	if !ok || ch.DeletedAt != nil {
		return Chapter{}, ErrNotFound
	}
	ch.Title = title
	ch.UpdatedAt = time.Now().UTC()
	s.chapters[id] = ch
	return ch, nil
}

func (s *InMemoryCatalogStore) SoftDeleteChapter(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.chapters[id]
	if !ok || ch.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	ch.DeletedAt = &now
	ch.UpdatedAt = now
	s.chapters[id] = ch
	return nil
}

func (s *InMemoryCatalogStore) UpdateChapterPositions(_ context.Context, updates []ChapterPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, u := range updates {
		ch, ok := s.chapters[u.ID]
		if !ok || ch.DeletedAt != nil {
			return fmt.Errorf("chapter %s: %w", u.ID, ErrNotFound)
		}
		ch.Position = u.Position
		ch.UpdatedAt = now
		s.chapters[u.ID] = ch
	}
	return nil
}

// ── Video writes ───────────────────────────────────────────────────────────

func (s *InMemoryCatalogStore) CreateVideo(_ context.Context, chapterID uuid.UUID, title, providerVideoID string, requiresWorkbook bool) (Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.chapters[chapterID]
	if !ok || ch.DeletedAt != nil {
		return Video{}, ErrNotFound
	}

	maxPos := 0
	for _, v := range s.videos {
		if v.ChapterID == chapterID && v.DeletedAt == nil && v.Position > maxPos {
			maxPos = v.Position
		}
	}

	now := time.Now().UTC()
	v := Video{
		ID:               uuid.New(),
		ChapterID:        chapterID,
		Title:            title,
		Position:         maxPos + 1,
		ProviderVideoID:  providerVideoID,
		RequiresWorkbook: requiresWorkbook,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.videos[v.ID] = v
	return v, nil
}

func (s *InMemoryCatalogStore) UpdateVideo(_ context.Context, id, chapterID uuid.UUID, title string, requiresWorkbook bool) (Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok || v.DeletedAt != nil {
		return Video{}, ErrNotFound
	}
	v.ChapterID = chapterID
	v.Title = title
	v.RequiresWorkbook = requiresWorkbook
	v.UpdatedAt = time.Now().UTC()
	s.videos[id] = v
	return v, nil
}

func (s *InMemoryCatalogStore) SoftDeleteVideo(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok || v.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	v.DeletedAt = &now
	v.UpdatedAt = now
	s.videos[id] = v
	return nil
}

func (s *InMemoryCatalogStore) UpdateVideoPositions(_ context.Context, updates []VideoPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, u := range updates {
		v, ok := s.videos[u.ID]
		if !ok || v.DeletedAt != nil {
			return fmt.Errorf("video %s: %w", u.ID, ErrNotFound)
		}
		v.ChapterID = u.ChapterID
		v.Position = u.Position
		v.UpdatedAt = now
		s.videos[u.ID] = v
	}
	return nil
}

// ── Reads for learners and the gateway ─────────────────────────────────────

func (s *InMemoryCatalogStore) ListChapters(_ context.Context, courseID uuid.UUID) ([]Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Chapter
	for _, ch := range s.chapters {
		if ch.CourseID == courseID && ch.DeletedAt == nil {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryCatalogStore) ListCourseVideos(_ context.Context, courseID uuid.UUID) ([]Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chapterPos := make(map[uuid.UUID]int)
	for _, ch := range s.chapters {
		if ch.CourseID == courseID && ch.DeletedAt == nil {
			chapterPos[ch.ID] = ch.Position
		}
	}

	var out []Video
	for _, v := range s.videos {
		if _, ok := chapterPos[v.ChapterID]; ok && v.DeletedAt == nil {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := chapterPos[out[i].ChapterID], chapterPos[out[j].ChapterID]
		if ci != cj {
			return ci < cj
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryCatalogStore) GetVideoContext(_ context.Context, videoID uuid.UUID) (VideoContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.videos[videoID]
	if !ok || v.DeletedAt != nil {
		return VideoContext{}, ErrNotFound
	}
	ch, ok := s.chapters[v.ChapterID]
	if !ok || ch.DeletedAt != nil {
		return VideoContext{}, ErrNotFound
	}
	c, ok := s.courses[ch.CourseID]
	if !ok || c.DeletedAt != nil {
		return VideoContext{}, ErrNotFound
	}
	return VideoContext{Video: v, Chapter: ch, Course: c}, nil
}
