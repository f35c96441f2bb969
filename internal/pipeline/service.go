package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"recruify/internal/database"
	"recruify/internal/metrics"
	"recruify/internal/notify"
	"recruify/internal/recruit"
)

// Service 将看板与数据库中的候选人阶段同步。
type Service struct {
	db       *gorm.DB
	notifier notify.Publisher
	logger   *slog.Logger
}

func NewService(db *gorm.DB, notifier notify.Publisher, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, notifier: notifier, logger: logger}
}

// MoveResult describes the outcome of Move.
type MoveResult struct {
	Applicant database.Applicant
	From      recruit.Stage
	To        recruit.Stage
	Moved     bool
}

// Board 加载公司全部候选人并按筛选条件构建看板。
// 列内顺序为进入当前阶段的时间升序，与 Move 追加到列尾的语义一致。
func (s *Service) Board(ctx context.Context, companyID uint, filter Filter) (*Board, error) {
	var applicants []database.Applicant
	err := database.CompanyApplicants(s.db.WithContext(ctx), companyID).
		Preload("Posting").
		Order("applicants.stage_changed_at ASC").
		Order("applicants.id ASC").
		Find(&applicants).Error
	if err != nil {
		return nil, fmt.Errorf("load applicants: %w", err)
	}

	board := NewBoard()
	for _, a := range applicants {
		stage := recruit.Stage(a.Stage)
		if !stage.Valid() {
			s.logger.Warn("applicant has unknown stage, placing in applied",
				slog.Uint64("applicant_id", uint64(a.ID)),
				slog.String("stage", a.Stage),
			)
			stage = recruit.StageApplied
		}
		if err := board.Add(stage, CardFromApplicant(a)); err != nil {
			return nil, fmt.Errorf("add applicant %d: %w", a.ID, err)
		}
	}
	return board.Filter(filter), nil
}

// CardFromApplicant projects an applicant row onto a board card.
func CardFromApplicant(a database.Applicant) Card {
	card := Card{
		ID:           a.ID,
		PostingID:    a.PostingID,
		PostingTitle: a.Posting.Title,
		Name:         a.Name,
		TotalScore:   a.TotalScore,
	}
	if a.ApplyPlatform != nil {
		card.ApplyPlatform = *a.ApplyPlatform
	}
	return card
}

// Move 将候选人移动到目标阶段并写入一条流转日志。
// 更新以当前阶段为条件，期间若被其他请求修改则返回 ErrStageConflict。
func (s *Service) Move(ctx context.Context, companyID, applicantID uint, to recruit.Stage, memo *string) (MoveResult, error) {
	if !to.Valid() {
		return MoveResult{}, ErrUnknownStage
	}

	var result MoveResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applicant, err := database.FindApplicant(tx, companyID, applicantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrApplicantScope
			}
			return fmt.Errorf("load applicant: %w", err)
		}

		board := NewBoard()
		current := recruit.Stage(applicant.Stage)
		if !current.Valid() {
			current = recruit.StageApplied
		}
		if err := board.Add(current, CardFromApplicant(applicant)); err != nil {
			return err
		}
		from, moved, err := board.Move(applicant.ID, to)
		if err != nil {
			return err
		}

		result = MoveResult{From: from, To: to, Moved: moved}
		if !moved {
			// 同阶段不记日志，但保存随请求带来的备注。
			if memo != nil {
				if err := tx.Model(&database.Applicant{}).Where("id = ?", applicant.ID).
					Update("memo", *memo).Error; err != nil {
					return fmt.Errorf("update memo: %w", err)
				}
				applicant.Memo = memo
			}
			result.Applicant = applicant
			return nil
		}

		updates := map[string]any{"stage": string(to), "stage_changed_at": time.Now()}
		if memo != nil {
			updates["memo"] = *memo
		}
		res := tx.Model(&database.Applicant{}).
			Where("id = ? AND stage = ?", applicant.ID, applicant.Stage).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update stage: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStageConflict
		}

		fromStage := string(from)
		entry := database.PipelineLog{
			ApplicantID: applicant.ID,
			FromStage:   &fromStage,
			ToStage:     string(to),
			Memo:        memo,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("write pipeline log: %w", err)
		}

		reloaded, err := database.FindApplicant(tx, companyID, applicant.ID)
		if err != nil {
			return fmt.Errorf("reload applicant: %w", err)
		}
		result.Applicant = reloaded
		return nil
	})
	if err != nil {
		return MoveResult{}, err
	}

	if result.Moved {
		metrics.ObservePipelineMove(string(result.To))
		msg := notify.Message{
			Type:        notify.TypePipelineMoved,
			ApplicantID: applicantID,
			FromStage:   string(result.From),
			ToStage:     string(result.To),
		}
		if err := s.notifier.Publish(ctx, companyID, msg); err != nil {
			s.logger.Warn("publish pipeline notification failed",
				slog.Uint64("applicant_id", uint64(applicantID)),
				slog.Any("error", err),
			)
		}
	}
	return result, nil
}

// History lists the stage transitions of an applicant, oldest first.
func (s *Service) History(ctx context.Context, companyID, applicantID uint) ([]database.PipelineLog, error) {
	db := s.db.WithContext(ctx)
	if _, err := database.FindApplicant(db, companyID, applicantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicantScope
		}
		return nil, fmt.Errorf("load applicant: %w", err)
	}

	logs := make([]database.PipelineLog, 0)
	if err := db.Where("applicant_id = ?", applicantID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("load pipeline logs: %w", err)
	}
	return logs, nil
}
