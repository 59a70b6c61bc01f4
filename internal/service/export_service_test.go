package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/model"
)

func setupTestExportService(t *testing.T) (ExportService, *repositoryFixture) {
	t.Helper()
	repo, _, _, _ := newTestRepo()
	fx := &repositoryFixture{repo: repo, ctx: context.Background()}
	svc := NewExportService(repo, NewPeriodService(repo, zap.NewNop()), zap.NewNop())
	return svc, fx
}

// ── 快照测试 ──

// 导出后立即导入必须是恒等变换
func TestExportService_SnapshotRoundTrip(t *testing.T) {
	svc, fx := setupTestExportService(t)
	ctx := context.Background()

	fx.saveSubjects(t, "user-001", []model.Subject{
		{ID: "math", Name: "高数", TargetPercentage: 80, CreatedAt: 100, UpdatedAt: 100},
	})
	fx.saveLectures(t, "user-001", []model.LectureRecord{
		rec("2025-10-01_math_1", "math", "2025-10-01", 1, model.StatusPresent, 200),
		rec("2025-10-02_math_1", "math", "2025-10-02", 1, model.StatusAbsent, 300),
	})

	snapshot, err := svc.ExportSnapshot(ctx, "user-001")
	if err != nil {
		t.Fatalf("ExportSnapshot 应成功: %v", err)
	}
	if snapshot.Version != 1 {
		t.Errorf("期望快照版本=1，实际=%d", snapshot.Version)
	}
	if len(snapshot.Lectures) != 2 || len(snapshot.Subjects) != 1 {
		t.Fatalf("快照内容不完整: %d条记录 %d个科目", len(snapshot.Lectures), len(snapshot.Subjects))
	}

	if err := svc.ImportSnapshot(ctx, "user-001", snapshot); err != nil {
		t.Fatalf("ImportSnapshot 应成功: %v", err)
	}

	after, _ := fx.repo.Local.Lectures(ctx, "user-001")
	if !reflect.DeepEqual(after, snapshot.Lectures) {
		t.Errorf("导出后导入应为恒等变换\n期望=%+v\n实际=%+v", snapshot.Lectures, after)
	}
}

// 导入是按时间戳合并，不是整体覆盖
func TestExportService_ImportSnapshot_MergesByTimestamp(t *testing.T) {
	svc, fx := setupTestExportService(t)
	ctx := context.Background()

	fx.saveSubjects(t, "user-001", []model.Subject{
		{ID: "math", Name: "高数", TargetPercentage: 80, CreatedAt: 100, UpdatedAt: 500},
	})
	fx.saveLectures(t, "user-001", []model.LectureRecord{
		rec("2025-10-01_math_1", "math", "2025-10-01", 1, model.StatusPresent, 500),
	})

	snapshot := &dto.Snapshot{
		Version: 1,
		Subjects: []model.Subject{
			// 较旧的科目版本：不应覆盖现有名称
			{ID: "math", Name: "旧名称", TargetPercentage: 75, CreatedAt: 100, UpdatedAt: 400},
		},
		Lectures: []model.LectureRecord{
			// 同一记录的较旧版本 + 一条新记录
			rec("2025-10-01_math_1", "math", "2025-10-01", 1, model.StatusAbsent, 400),
			rec("2025-10-02_math_1", "math", "2025-10-02", 1, model.StatusPresent, 600),
		},
		Days: map[string]model.DayRecord{},
	}
	if err := svc.ImportSnapshot(ctx, "user-001", snapshot); err != nil {
		t.Fatalf("ImportSnapshot 应成功: %v", err)
	}

	records, _ := fx.repo.Local.Lectures(ctx, "user-001")
	if len(records) != 2 {
		t.Fatalf("期望合并后2条记录，实际=%d", len(records))
	}
	if records[0].Status != model.StatusPresent {
		t.Errorf("较旧的快照记录不应覆盖本地记录，实际状态=%s", records[0].Status)
	}

	subjects, _ := fx.repo.Local.Subjects(ctx, "user-001")
	if subjects[0].Name != "高数" {
		t.Errorf("较旧的快照科目不应覆盖本地科目，实际名称=%s", subjects[0].Name)
	}
	// 导入后派生计数器重算：2条有效记录，2条出勤
	if subjects[0].TotalClasses != 2 || subjects[0].AttendedClasses != 2 {
		t.Errorf("导入后计数器应重算，实际 total=%d attended=%d",
			subjects[0].TotalClasses, subjects[0].AttendedClasses)
	}
}

func TestExportService_ImportSnapshot_VersionMismatch(t *testing.T) {
	svc, _ := setupTestExportService(t)

	err := svc.ImportSnapshot(context.Background(), "user-001", &dto.Snapshot{Version: 99})
	if !errors.Is(err, ErrSnapshotVersion) {
		t.Errorf("期望 ErrSnapshotVersion，实际: %v", err)
	}
}

// ── 报表测试 ──

func TestExportService_ExportReport(t *testing.T) {
	svc, fx := setupTestExportService(t)

	fx.saveSubjects(t, "user-001", []model.Subject{
		{ID: "math", Name: "高数", TargetPercentage: 80, CreatedAt: 100, UpdatedAt: 100},
	})
	fx.saveLectures(t, "user-001", []model.LectureRecord{
		rec("2025-10-01_math_1", "math", "2025-10-01", 1, model.StatusPresent, 200),
	})

	buf, filename, err := svc.ExportReport(context.Background(), "user-001")
	if err != nil {
		t.Fatalf("ExportReport 应成功: %v", err)
	}
	if buf == nil || buf.Len() == 0 {
		t.Error("报表内容不应为空")
	}
	if !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("期望 .xlsx 文件名，实际=%s", filename)
	}
}

func TestExportService_ExportReport_NoSubjects(t *testing.T) {
	svc, _ := setupTestExportService(t)

	_, _, err := svc.ExportReport(context.Background(), "user-001")
	if !errors.Is(err, ErrExportNoSubjects) {
		t.Errorf("期望 ErrExportNoSubjects，实际: %v", err)
	}
}

// ── 假期日历测试 ──

func TestExportService_ExportHolidayCalendar(t *testing.T) {
	svc, fx := setupTestExportService(t)

	fx.saveDays(t, "user-001", map[string]model.DayRecord{
		"2025-10-01": {Date: "2025-10-01", IsHoliday: true, Notes: "国庆节", UpdatedAt: 100},
		"2025-10-02": {Date: "2025-10-02", IsHoliday: false, UpdatedAt: 100},
	})

	buf, filename, err := svc.ExportHolidayCalendar(context.Background(), "user-001")
	if err != nil {
		t.Fatalf("ExportHolidayCalendar 应成功: %v", err)
	}
	if filename != "假期日历.ics" {
		t.Errorf("期望文件名=假期日历.ics，实际=%s", filename)
	}

	content := buf.String()
	if got := strings.Count(content, "BEGIN:VEVENT"); got != 1 {
		t.Errorf("非假期日期不应生成事件，期望1个 VEVENT，实际=%d", got)
	}
	if !strings.Contains(content, "国庆节") {
		t.Error("备注应写入事件描述")
	}
}

func TestExportService_ExportHolidayCalendar_Empty(t *testing.T) {
	svc, _ := setupTestExportService(t)

	buf, _, err := svc.ExportHolidayCalendar(context.Background(), "user-001")
	if err != nil {
		t.Fatalf("无假期时仍应生成空日历: %v", err)
	}
	if !strings.Contains(buf.String(), "BEGIN:VCALENDAR") {
		t.Error("输出应是合法的 iCalendar 文档")
	}
}
