package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/model"
)

func setupTestSubjectService(t *testing.T) (SubjectService, *repositoryFixture, *mockOutbox) {
	t.Helper()
	repo, _, _, _ := newTestRepo()
	fx := &repositoryFixture{repo: repo, ctx: context.Background()}
	outbox := &mockOutbox{}
	svc := NewSubjectService(repo, outbox, zap.NewNop())
	return svc, fx, outbox
}

// ── Create 测试 ──

func TestSubjectService_Create_DefaultTarget(t *testing.T) {
	svc, _, _ := setupTestSubjectService(t)

	result, err := svc.Create(context.Background(), "user-001", &dto.CreateSubjectRequest{
		Name: "数学",
	})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if result.TargetPercentage != 75 {
		t.Errorf("缺省目标应为75，实际=%f", result.TargetPercentage)
	}
	if result.ID == "" {
		t.Error("应分配科目ID")
	}
	if result.TotalClasses != 0 || result.AttendedClasses != 0 {
		t.Errorf("新科目计数应为0，实际=%d/%d", result.AttendedClasses, result.TotalClasses)
	}
}

func TestSubjectService_Create_DuplicateName(t *testing.T) {
	svc, _, _ := setupTestSubjectService(t)

	if _, err := svc.Create(context.Background(), "user-001", &dto.CreateSubjectRequest{Name: "数学"}); err != nil {
		t.Fatalf("首次创建应成功: %v", err)
	}
	_, err := svc.Create(context.Background(), "user-001", &dto.CreateSubjectRequest{Name: "数学"})
	if !errors.Is(err, ErrSubjectNameTaken) {
		t.Errorf("期望 ErrSubjectNameTaken，实际: %v", err)
	}
}

// ── Update 测试 ──

func TestSubjectService_Update_PartialFields(t *testing.T) {
	svc, _, _ := setupTestSubjectService(t)

	created, err := svc.Create(context.Background(), "user-001", &dto.CreateSubjectRequest{
		Name: "数学", Color: "#ff0000",
	})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	newTarget := 85.0
	updated, err := svc.Update(context.Background(), "user-001", created.ID, &dto.UpdateSubjectRequest{
		TargetPercentage: &newTarget,
	})
	if err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	if updated.TargetPercentage != 85 {
		t.Errorf("期望target=85，实际=%f", updated.TargetPercentage)
	}
	// 未指定的字段保持不变
	if updated.Name != "数学" || updated.Color != "#ff0000" {
		t.Errorf("未更新字段应保持原值，实际=%+v", updated)
	}
}

func TestSubjectService_Update_NotFound(t *testing.T) {
	svc, _, _ := setupTestSubjectService(t)

	name := "物理"
	_, err := svc.Update(context.Background(), "user-001", "ghost", &dto.UpdateSubjectRequest{Name: &name})
	if !errors.Is(err, ErrSubjectNotFound) {
		t.Errorf("期望 ErrSubjectNotFound，实际: %v", err)
	}
}

// ── Delete 测试 ──

// 删除科目级联删除其全部课程记录，并对受影响日期调度同步
func TestSubjectService_Delete_CascadesRecords(t *testing.T) {
	svc, fx, outbox := setupTestSubjectService(t)
	uid := "user-001"

	created, err := svc.Create(context.Background(), uid, &dto.CreateSubjectRequest{Name: "数学"})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	fx.saveLectures(t, uid, []model.LectureRecord{
		rec(model.MakeLectureID("2025-10-01", created.ID, 1), created.ID, "2025-10-01", 1, model.StatusPresent, 100),
		rec(model.MakeLectureID("2025-10-02", created.ID, 1), created.ID, "2025-10-02", 1, model.StatusAbsent, 100),
		rec("2025-10-01_other_1", "other", "2025-10-01", 1, model.StatusPresent, 100),
	})
	fx.saveProfile(t, uid, model.LocalProfile{ActivePeriodID: "2025-10"})

	if err := svc.Delete(context.Background(), uid, created.ID); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}

	records, _ := fx.repo.Local.Lectures(context.Background(), uid)
	if len(records) != 1 || records[0].SubjectID != "other" {
		t.Errorf("应仅保留其他科目的记录，实际=%+v", records)
	}

	subjects, _ := fx.repo.Local.Subjects(context.Background(), uid)
	if len(subjects) != 0 {
		t.Errorf("科目应被删除，实际=%d个", len(subjects))
	}

	// 两个受影响日期各调度一次同步
	if outbox.count() != 2 {
		t.Errorf("期望调度2次同步，实际=%d", outbox.count())
	}
}

func TestSubjectService_Delete_NotFound(t *testing.T) {
	svc, _, _ := setupTestSubjectService(t)

	err := svc.Delete(context.Background(), "user-001", "ghost")
	if !errors.Is(err, ErrSubjectNotFound) {
		t.Errorf("期望 ErrSubjectNotFound，实际: %v", err)
	}
}
