package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/model"
	"classtrack/backend/internal/repository"
)

func setupTestAttendanceService(t *testing.T) (AttendanceService, *repositoryFixture, *mockOutbox) {
	t.Helper()
	repo, _, _, _ := newTestRepo()
	fx := &repositoryFixture{repo: repo, ctx: context.Background()}
	outbox := &mockOutbox{}
	svc := NewAttendanceService(repo, outbox, zap.NewNop())
	return svc, fx, outbox
}

func seedSubject(t *testing.T, fx *repositoryFixture, uid, id, name string) {
	t.Helper()
	subjects, err := fx.repo.Local.Subjects(fx.ctx, uid)
	if err != nil {
		t.Fatalf("读取科目失败: %v", err)
	}
	subjects = append(subjects, model.Subject{
		ID: id, Name: name, TargetPercentage: model.DefaultTargetPercentage,
	})
	fx.saveSubjects(t, uid, subjects)
}

// ── Mark 测试 ──

func TestAttendanceService_Mark_AppendsNextIndex(t *testing.T) {
	svc, fx, outbox := setupTestAttendanceService(t)
	uid := "user-001"
	seedSubject(t, fx, uid, "math", "数学")

	first, err := svc.Mark(context.Background(), uid, &dto.MarkAttendanceRequest{
		SubjectID: "math", Date: "2025-10-01", Status: model.StatusPresent,
	})
	if err != nil {
		t.Fatalf("Mark 应成功: %v", err)
	}
	if first.LectureIndex != 1 {
		t.Errorf("首节期望lectureIndex=1，实际=%d", first.LectureIndex)
	}
	if first.ID != "2025-10-01_math_1" {
		t.Errorf("期望确定性ID=2025-10-01_math_1，实际=%s", first.ID)
	}

	second, err := svc.Mark(context.Background(), uid, &dto.MarkAttendanceRequest{
		SubjectID: "math", Date: "2025-10-01", Status: model.StatusAbsent,
	})
	if err != nil {
		t.Fatalf("Mark 应成功: %v", err)
	}
	if second.LectureIndex != 2 {
		t.Errorf("追加期望lectureIndex=2，实际=%d", second.LectureIndex)
	}

	if outbox.count() != 2 {
		t.Errorf("每次标记应调度一次同步，期望2，实际=%d", outbox.count())
	}
}

// 两台设备标记同一槽位：ID 相同，合并后只剩一条记录
func TestAttendanceService_Mark_SameSlotTwoDevicesConverges(t *testing.T) {
	svc, fx, _ := setupTestAttendanceService(t)
	uid := "user-001"
	seedSubject(t, fx, uid, "math", "数学")

	idx := 1
	tsA := int64(100)
	tsB := int64(200)

	recA, err := svc.Mark(context.Background(), uid, &dto.MarkAttendanceRequest{
		SubjectID: "math", Date: "2025-10-01", Status: model.StatusAbsent,
		LectureIndex: &idx, UpdatedAt: &tsA, DeviceID: "device-a",
	})
	if err != nil {
		t.Fatalf("Mark 应成功: %v", err)
	}
	recB, err := svc.Mark(context.Background(), uid, &dto.MarkAttendanceRequest{
		SubjectID: "math", Date: "2025-10-01", Status: model.StatusPresent,
		LectureIndex: &idx, UpdatedAt: &tsB, DeviceID: "device-b",
	})
	if err != nil {
		t.Fatalf("Mark 应成功: %v", err)
	}
	if recA.ID != recB.ID {
		t.Fatalf("同一槽位两台设备应生成相同ID：%s != %s", recA.ID, recB.ID)
	}

	records, err := fx.repo.Local.Lectures(context.Background(), uid)
	if err != nil {
		t.Fatalf("读取记录失败: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("同一槽位应收敛为1条记录，实际=%d", len(records))
	}
	if records[0].Status != model.StatusPresent {
		t.Errorf("期望status=present，实际=%s", records[0].Status)
	}
	if records[0].DeviceID != "device-b" {
		t.Errorf("期望deviceId=device-b，实际=%s", records[0].DeviceID)
	}
}

// 显式节次只能覆盖已有槽位或追加下一节；越过空槽位会留下永久空洞
func TestAttendanceService_Mark_ExplicitIndexBeyondNextRejected(t *testing.T) {
	svc, fx, outbox := setupTestAttendanceService(t)
	uid := "user-001"
	seedSubject(t, fx, uid, "math", "数学")

	if _, err := svc.Mark(context.Background(), uid, &dto.MarkAttendanceRequest{
		SubjectID: "math", Date: "2025-10-01", Status: model.StatusPresent,
	}); err != nil {
		t.Fatalf("Mark 应成功: %v", err)
	}

	// 已有第1节，第3节越过了空着的第2节
	idx := 3
	_, err := svc.Mark(context.Background(), uid, &dto.MarkAttendanceRequest{
		SubjectID: "math", Date: "2025-10-01", Status: model.StatusPresent,
		LectureIndex: &idx,
	})
	if !errors.Is(err, ErrInvalidLectureIndex) {
		t.Fatalf("期望 ErrInvalidLectureIndex，实际: %v", err)
	}

	// 拒绝不留半应用状态：记录集与同步调度均不变
	records, _ := fx.repo.Local.Lectures(context.Background(), uid)
	if len(records) != 1 {
		t.Errorf("拒绝后记录集不应改变，期望1条，实际=%d", len(records))
	}
	if outbox.count() != 1 {
		t.Errorf("拒绝后不应调度同步，期望1次，实际=%d", outbox.count())
	}

	// 正好等于下一节的显式节次是合法追加
	next := 2
	rec, err := svc.Mark(context.Background(), uid, &dto.MarkAttendanceRequest{
		SubjectID: "math", Date: "2025-10-01", Status: model.StatusAbsent,
		LectureIndex: &next,
	})
	if err != nil {
		t.Fatalf("追加下一节应成功: %v", err)
	}
	if rec.LectureIndex != 2 {
		t.Errorf("期望lectureIndex=2，实际=%d", rec.LectureIndex)
	}
}

func TestAttendanceService_Mark_UnknownSubject(t *testing.T) {
	svc, _, _ := setupTestAttendanceService(t)

	_, err := svc.Mark(context.Background(), "user-001", &dto.MarkAttendanceRequest{
		SubjectID: "ghost", Date: "2025-10-01", Status: model.StatusPresent,
	})
	if !errors.Is(err, ErrSubjectNotFound) {
		t.Errorf("期望 ErrSubjectNotFound，实际: %v", err)
	}
}

func TestAttendanceService_Mark_InvalidInput(t *testing.T) {
	svc, fx, _ := setupTestAttendanceService(t)
	uid := "user-001"
	seedSubject(t, fx, uid, "math", "数学")

	_, err := svc.Mark(context.Background(), uid, &dto.MarkAttendanceRequest{
		SubjectID: "math", Date: "10/01/2025", Status: model.StatusPresent,
	})
	if !errors.Is(err, ErrInvalidDate) {
		t.Errorf("期望 ErrInvalidDate，实际: %v", err)
	}

	_, err = svc.Mark(context.Background(), uid, &dto.MarkAttendanceRequest{
		SubjectID: "math", Date: "2025-10-01", Status: "late",
	})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("期望 ErrInvalidStatus，实际: %v", err)
	}
}

// 标记后科目缓存计数必须等于全量重推导的值
func TestAttendanceService_Mark_CountersNoDrift(t *testing.T) {
	svc, fx, _ := setupTestAttendanceService(t)
	uid := "user-001"
	seedSubject(t, fx, uid, "math", "数学")

	statuses := []string{model.StatusPresent, model.StatusAbsent, model.StatusPresent, model.StatusNoLecture}
	for _, status := range statuses {
		if _, err := svc.Mark(context.Background(), uid, &dto.MarkAttendanceRequest{
			SubjectID: "math", Date: "2025-10-01", Status: status,
		}); err != nil {
			t.Fatalf("Mark 应成功: %v", err)
		}
	}

	subjects, err := fx.repo.Local.Subjects(context.Background(), uid)
	if err != nil {
		t.Fatalf("读取科目失败: %v", err)
	}
	// 4节中1节为墓碑：total=3，attended=2
	if subjects[0].TotalClasses != 3 {
		t.Errorf("期望totalClasses=3，实际=%d", subjects[0].TotalClasses)
	}
	if subjects[0].AttendedClasses != 2 {
		t.Errorf("期望attendedClasses=2，实际=%d", subjects[0].AttendedClasses)
	}
}

// ── MarkAllForDate 测试 ──

// 3个科目各1节：mark-all 创建3条第1节记录
func TestAttendanceService_MarkAll_CreatesFirstLecturePerSubject(t *testing.T) {
	svc, fx, _ := setupTestAttendanceService(t)
	uid := "user-001"
	seedSubject(t, fx, uid, "math", "数学")
	seedSubject(t, fx, uid, "phys", "物理")
	seedSubject(t, fx, uid, "chem", "化学")

	touched, err := svc.MarkAllForDate(context.Background(), uid, &dto.MarkAllRequest{
		Date: "2025-10-01", Status: model.StatusPresent,
	})
	if err != nil {
		t.Fatalf("MarkAllForDate 应成功: %v", err)
	}
	if len(touched) != 3 {
		t.Fatalf("期望3条记录，实际=%d", len(touched))
	}
	for _, r := range touched {
		if r.LectureIndex != 1 {
			t.Errorf("无记录的科目应创建第1节，实际lectureIndex=%d", r.LectureIndex)
		}
		if r.Status != model.StatusPresent {
			t.Errorf("期望status=present，实际=%s", r.Status)
		}
	}
}

// 已有多节记录的科目：mark-all 覆盖当天全部节次的状态
func TestAttendanceService_MarkAll_OverridesExistingSlots(t *testing.T) {
	svc, fx, _ := setupTestAttendanceService(t)
	uid := "user-001"
	seedSubject(t, fx, uid, "math", "数学")

	for i := 0; i < 2; i++ {
		if _, err := svc.Mark(context.Background(), uid, &dto.MarkAttendanceRequest{
			SubjectID: "math", Date: "2025-10-01", Status: model.StatusAbsent,
		}); err != nil {
			t.Fatalf("Mark 应成功: %v", err)
		}
	}

	touched, err := svc.MarkAllForDate(context.Background(), uid, &dto.MarkAllRequest{
		Date: "2025-10-01", Status: model.StatusPresent,
	})
	if err != nil {
		t.Fatalf("MarkAllForDate 应成功: %v", err)
	}
	if len(touched) != 2 {
		t.Fatalf("期望覆盖2节，实际=%d", len(touched))
	}

	records, _ := fx.repo.Local.Lectures(context.Background(), uid)
	if len(records) != 2 {
		t.Fatalf("覆盖不应新增记录，期望2条，实际=%d", len(records))
	}
	for _, r := range records {
		if r.Status != model.StatusPresent {
			t.Errorf("期望status=present，实际=%s", r.Status)
		}
	}
}

// ── Delete 测试 ──

// 删除第2节后，第3、4节重排为第2、3节，ID 跟随更新
func TestAttendanceService_Delete_RenumbersFollowingSlots(t *testing.T) {
	svc, fx, _ := setupTestAttendanceService(t)
	uid := "user-001"
	seedSubject(t, fx, uid, "math", "数学")

	for i := 0; i < 4; i++ {
		if _, err := svc.Mark(context.Background(), uid, &dto.MarkAttendanceRequest{
			SubjectID: "math", Date: "2025-10-01", Status: model.StatusPresent,
		}); err != nil {
			t.Fatalf("Mark 应成功: %v", err)
		}
	}

	err := svc.Delete(context.Background(), uid, &dto.DeleteLectureRequest{
		SubjectID: "math", Date: "2025-10-01", LectureIndex: 2,
	})
	if err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}

	records, _ := fx.repo.Local.Lectures(context.Background(), uid)
	if len(records) != 3 {
		t.Fatalf("期望3条记录，实际=%d", len(records))
	}

	seen := make(map[int]string)
	for _, r := range records {
		seen[r.LectureIndex] = r.ID
	}
	for _, idx := range []int{1, 2, 3} {
		wantID := model.MakeLectureID("2025-10-01", "math", idx)
		if seen[idx] != wantID {
			t.Errorf("节次%d期望ID=%s，实际=%s", idx, wantID, seen[idx])
		}
	}

	// 计数跟随刷新
	subjects, _ := fx.repo.Local.Subjects(context.Background(), uid)
	if subjects[0].TotalClasses != 3 {
		t.Errorf("删除后期望totalClasses=3，实际=%d", subjects[0].TotalClasses)
	}
}

func TestAttendanceService_Delete_MissingSlotIsNoop(t *testing.T) {
	svc, fx, outbox := setupTestAttendanceService(t)
	uid := "user-001"
	seedSubject(t, fx, uid, "math", "数学")

	err := svc.Delete(context.Background(), uid, &dto.DeleteLectureRequest{
		SubjectID: "math", Date: "2025-10-01", LectureIndex: 5,
	})
	if err != nil {
		t.Fatalf("不存在的槽位应为 no-op: %v", err)
	}
	if outbox.count() != 0 {
		t.Errorf("no-op 不应调度同步，实际=%d", outbox.count())
	}
}

// ── 查询测试 ──

func TestAttendanceService_ListByDate(t *testing.T) {
	svc, fx, _ := setupTestAttendanceService(t)
	uid := "user-001"
	fx.saveLectures(t, uid, []model.LectureRecord{
		rec("2025-10-01_math_1", "math", "2025-10-01", 1, model.StatusPresent, 100),
		rec("2025-10-02_math_1", "math", "2025-10-02", 1, model.StatusAbsent, 100),
	})

	records, err := svc.ListByDate(context.Background(), uid, "2025-10-01")
	if err != nil {
		t.Fatalf("ListByDate 应成功: %v", err)
	}
	if len(records) != 1 || records[0].Date != "2025-10-01" {
		t.Errorf("期望仅2025-10-01的1条记录，实际=%+v", records)
	}
}

// ── 本地写入失败时不产生半应用状态 ──

func TestAttendanceService_Mark_SaveFailureLeavesCountersUntouched(t *testing.T) {
	store := newMockLocalStore()
	repo := &repository.Repository{
		User:    newMockUserRepo(),
		Period:  newMockPeriodRepo(),
		Profile: newMockProfileRepo(),
		Cloud:   newMockCloudRepo(),
		Local:   repository.NewLocalRepository(store),
	}
	fx := &repositoryFixture{repo: repo, ctx: context.Background()}
	svc := NewAttendanceService(repo, &mockOutbox{}, zap.NewNop())
	uid := "user-001"
	seedSubject(t, fx, uid, "math", "数学")

	// 记录集 Blob 写入失败
	store.failSaves["local:user-001:lectures"] = true

	_, err := svc.Mark(context.Background(), uid, &dto.MarkAttendanceRequest{
		SubjectID: "math", Date: "2025-10-01", Status: model.StatusPresent,
	})
	if err == nil {
		t.Fatal("写入失败应返回错误")
	}

	subjects, _ := repo.Local.Subjects(context.Background(), uid)
	if subjects[0].TotalClasses != 0 || subjects[0].AttendedClasses != 0 {
		t.Errorf("记录写入失败时计数应保持原状，实际=%d/%d",
			subjects[0].AttendedClasses, subjects[0].TotalClasses)
	}
}
