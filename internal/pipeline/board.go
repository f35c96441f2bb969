// Package pipeline 维护招聘看板：每个阶段一个有序列，候选人在列之间移动。
package pipeline

import (
	"errors"
	"slices"
	"strings"

	"recruify/internal/recruit"
)

var (
	ErrUnknownStage   = errors.New("pipeline: unknown stage")
	ErrCardNotFound   = errors.New("pipeline: card not found")
	ErrDuplicateCard  = errors.New("pipeline: duplicate card")
	ErrStageConflict  = errors.New("pipeline: stage changed concurrently")
	ErrApplicantScope = errors.New("pipeline: applicant not found")
)

// Card 是看板上展示的候选人摘要。
type Card struct {
	ID            uint   `json:"id"`
	PostingID     uint   `json:"posting_id"`
	PostingTitle  string `json:"posting_title"`
	Name          string `json:"name"`
	ApplyPlatform string `json:"apply_platform,omitempty"`
	TotalScore    *int   `json:"total_score"`
}

// Column is one rendered stage bucket.
type Column struct {
	Stage recruit.Stage `json:"stage"`
	Title string        `json:"title"`
	Count int           `json:"count"`
	Cards []Card        `json:"cards"`
}

// Filter narrows a board. Zero values match everything.
type Filter struct {
	PostingID uint
	Platform  string
	MinScore  *int
	Query     string
}

func (f Filter) match(c Card) bool {
	if f.PostingID != 0 && c.PostingID != f.PostingID {
		return false
	}
	if f.Platform != "" && c.ApplyPlatform != f.Platform {
		return false
	}
	if f.MinScore != nil && (c.TotalScore == nil || *c.TotalScore < *f.MinScore) {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(q)) {
		return false
	}
	return true
}

// Board is not safe for concurrent use; callers build one per request.
type Board struct {
	buckets [][]Card
	where   map[uint]int
}

func NewBoard() *Board {
	return &Board{
		buckets: make([][]Card, len(recruit.Stages)),
		where:   make(map[uint]int),
	}
}

// Add appends card to the bucket of stage.
func (b *Board) Add(stage recruit.Stage, card Card) error {
	idx := stage.Index()
	if idx < 0 {
		return ErrUnknownStage
	}
	if _, ok := b.where[card.ID]; ok {
		return ErrDuplicateCard
	}
	b.buckets[idx] = append(b.buckets[idx], card)
	b.where[card.ID] = idx
	return nil
}

// Move 将卡片从当前列移除并追加到目标列末尾，返回原阶段。
// 目标与当前阶段相同时不做改动，moved 为 false。
func (b *Board) Move(id uint, to recruit.Stage) (from recruit.Stage, moved bool, err error) {
	target := to.Index()
	if target < 0 {
		return "", false, ErrUnknownStage
	}
	src, ok := b.where[id]
	if !ok {
		return "", false, ErrCardNotFound
	}
	from = recruit.Stages[src].Stage
	if src == target {
		return from, false, nil
	}

	bucket := b.buckets[src]
	pos := slices.IndexFunc(bucket, func(c Card) bool { return c.ID == id })
	card := bucket[pos]
	b.buckets[src] = slices.Delete(bucket, pos, pos+1)
	b.buckets[target] = append(b.buckets[target], card)
	b.where[id] = target
	return from, true, nil
}

// Find returns the card and its stage.
func (b *Board) Find(id uint) (Card, recruit.Stage, bool) {
	idx, ok := b.where[id]
	if !ok {
		return Card{}, "", false
	}
	for _, c := range b.buckets[idx] {
		if c.ID == id {
			return c, recruit.Stages[idx].Stage, true
		}
	}
	return Card{}, "", false
}

func (b *Board) Len() int {
	return len(b.where)
}

// Counts 返回每个阶段的卡片数量，所有阶段都会出现（可能为 0）。
func (b *Board) Counts() map[recruit.Stage]int {
	counts := make(map[recruit.Stage]int, len(recruit.Stages))
	for i, info := range recruit.Stages {
		counts[info.Stage] = len(b.buckets[i])
	}
	return counts
}

// Columns renders the board in stage order. Cards slices are copies.
func (b *Board) Columns() []Column {
	cols := make([]Column, len(recruit.Stages))
	for i, info := range recruit.Stages {
		cards := make([]Card, len(b.buckets[i]))
		copy(cards, b.buckets[i])
		cols[i] = Column{
			Stage: info.Stage,
			Title: info.Title,
			Count: len(cards),
			Cards: cards,
		}
	}
	return cols
}

// Filter returns a new board with the matching cards, keeping bucket order.
func (b *Board) Filter(f Filter) *Board {
	out := NewBoard()
	for i, bucket := range b.buckets {
		for _, c := range bucket {
			if f.match(c) {
				out.buckets[i] = append(out.buckets[i], c)
				out.where[c.ID] = i
			}
		}
	}
	return out
}
