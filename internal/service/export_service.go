package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/model"
	"classtrack/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrSnapshotVersion    = errors.New("不支持的快照版本")
	ErrExportNoSubjects   = errors.New("暂无科目，无法生成报表")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// snapshotVersion 当前快照格式版本
const snapshotVersion = 1

// ExportService 导出与备份业务接口
//
// 设计说明：
//   - 快照导出/导入是本地工作集的整体备份，与云端同步互不干涉
//   - 出勤报表以 Excel (.xlsx) 形式生成，按科目逐行呈现统计值
//   - 假期日历以 iCalendar (.ics) 形式生成，每个假期一个全天事件
//   - 二进制导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入 Response
type ExportService interface {
	// ExportSnapshot 导出本地工作集完整快照
	ExportSnapshot(ctx context.Context, uid string) (*dto.Snapshot, error)
	// ImportSnapshot 导入快照，按时间戳合并入本地记录集
	ImportSnapshot(ctx context.Context, uid string, snapshot *dto.Snapshot) error
	// ExportReport 生成出勤统计报表 Excel
	ExportReport(ctx context.Context, uid string) (*bytes.Buffer, string, error)
	// ExportHolidayCalendar 生成假期日历 ICS
	ExportHolidayCalendar(ctx context.Context, uid string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo      *repository.Repository
	periodSvc PeriodService
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, periodSvc PeriodService, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, periodSvc: periodSvc, logger: logger, now: time.Now}
}

// ────────────────────── ExportSnapshot ──────────────────────

func (s *exportService) ExportSnapshot(ctx context.Context, uid string) (*dto.Snapshot, error) {
	subjects, err := s.repo.Local.Subjects(ctx, uid)
	if err != nil {
		return nil, err
	}
	lectures, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		return nil, err
	}
	days, err := s.repo.Local.Days(ctx, uid)
	if err != nil {
		return nil, err
	}
	activePeriod, err := s.periodSvc.ActivePeriod(ctx, uid)
	if err != nil {
		return nil, err
	}

	return &dto.Snapshot{
		Version:      snapshotVersion,
		ExportedAt:   s.now().UnixMilli(),
		ActivePeriod: activePeriod,
		Subjects:     subjects,
		Lectures:     lectures,
		Days:         days,
	}, nil
}

// ────────────────────── ImportSnapshot ──────────────────────
//
// 导入语义是合并而非覆盖：课程记录按 LWW 规则与现有记录集合并，
// 科目与日记录按 ID/日期取时间戳较新的一侧。
// 因此 importSnapshot(exportSnapshot()) 等价于恒等变换。

func (s *exportService) ImportSnapshot(ctx context.Context, uid string, snapshot *dto.Snapshot) error {
	if snapshot.Version != snapshotVersion {
		return ErrSnapshotVersion
	}

	lectures, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		return err
	}
	merged := MergeRecords(lectures, snapshot.Lectures, s.now().UnixMilli())

	subjects, err := s.repo.Local.Subjects(ctx, uid)
	if err != nil {
		return err
	}
	subjects = mergeSubjects(subjects, snapshot.Subjects)

	days, err := s.repo.Local.Days(ctx, uid)
	if err != nil {
		return err
	}
	for date, day := range snapshot.Days {
		if cur, ok := days[date]; ok && cur.UpdatedAt >= day.UpdatedAt {
			continue
		}
		days[date] = day
	}

	RefreshSubjectCounters(subjects, merged, "")

	if err := s.repo.Local.SaveLectures(ctx, uid, merged); err != nil {
		return err
	}
	if err := s.repo.Local.SaveSubjects(ctx, uid, subjects); err != nil {
		return err
	}
	if err := s.repo.Local.SaveDays(ctx, uid, days); err != nil {
		return err
	}

	s.logger.Info("快照导入完成",
		zap.String("uid", uid),
		zap.Int("lectures", len(merged)),
		zap.Int("subjects", len(subjects)))
	return nil
}

// mergeSubjects 按 ID 合并科目，时间戳较新者胜出（平局保留现有侧）
func mergeSubjects(existing, incoming []model.Subject) []model.Subject {
	byID := make(map[string]model.Subject, len(existing))
	for _, sub := range existing {
		byID[sub.ID] = sub
	}
	for _, sub := range incoming {
		if cur, ok := byID[sub.ID]; ok && cur.UpdatedAt >= sub.UpdatedAt {
			continue
		}
		byID[sub.ID] = sub
	}

	result := make([]model.Subject, 0, len(byID))
	for _, sub := range byID {
		result = append(result, sub)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// ────────────────────── ExportReport ──────────────────────
//
// 输出格式：
//   - 单 Sheet "出勤报表"
//   - 行头：科目名称
//   - 列：总课时 / 出勤课时 / 出勤率 / 目标 / 还可缺席 / 需补出勤 / 状态
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportReport(ctx context.Context, uid string) (*bytes.Buffer, string, error) {
	subjects, err := s.repo.Local.Subjects(ctx, uid)
	if err != nil {
		s.logger.Error("读取科目失败", zap.Error(err))
		return nil, "", err
	}
	if len(subjects) == 0 {
		return nil, "", ErrExportNoSubjects
	}

	lectures, err := s.repo.Local.Lectures(ctx, uid)
	if err != nil {
		s.logger.Error("读取课程记录失败", zap.Error(err))
		return nil, "", err
	}

	activePeriod, err := s.periodSvc.ActivePeriod(ctx, uid)
	if err != nil {
		return nil, "", err
	}

	// 按科目分组记录
	bySubject := make(map[string][]model.LectureRecord)
	for _, rec := range lectures {
		bySubject[rec.SubjectID] = append(bySubject[rec.SubjectID], rec)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "出勤报表"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 22)
	f.SetColWidth(sheetName, "B", "H", 12)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s — 出勤报表", activePeriod))
	f.MergeCell(sheetName, "A1", "H1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	headers := []string{"科目", "总课时", "出勤课时", "出勤率", "目标", "还可缺席", "需补出勤", "状态"}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheetName, cell(col, 2), h)
	}

	statusNames := map[string]string{
		StatsSafe:    "安全",
		StatsWarning: "预警",
		StatsDanger:  "危险",
	}

	row := 3
	for _, sub := range subjects {
		stats := ComputeStats(bySubject[sub.ID], sub.TargetPercentage)
		f.SetCellValue(sheetName, cell("A", row), sub.Name)
		f.SetCellValue(sheetName, cell("B", row), stats.Total)
		f.SetCellValue(sheetName, cell("C", row), stats.Attended)
		f.SetCellValue(sheetName, cell("D", row), fmt.Sprintf("%.1f%%", stats.Percentage))
		f.SetCellValue(sheetName, cell("E", row), fmt.Sprintf("%.0f%%", sub.TargetPercentage))
		f.SetCellValue(sheetName, cell("F", row), stats.CanMiss)
		f.SetCellValue(sheetName, cell("G", row), stats.NeedToAttend)
		f.SetCellValue(sheetName, cell("H", row), statusNames[stats.Status])
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("出勤报表_%s.xlsx", activePeriod)
	return buf, filename, nil
}

// ────────────────────── ExportHolidayCalendar ──────────────────────
//
// 每个标记为假期的日记录生成一个全天 VEVENT，备注写入 DESCRIPTION。

func (s *exportService) ExportHolidayCalendar(ctx context.Context, uid string) (*bytes.Buffer, string, error) {
	days, err := s.repo.Local.Days(ctx, uid)
	if err != nil {
		s.logger.Error("读取日记录失败", zap.Error(err))
		return nil, "", err
	}

	// 稳定输出顺序
	var dates []string
	for date, day := range days {
		if day.IsHoliday {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//classtrack//holiday-calendar//ZH")

	for _, date := range dates {
		day := days[date]
		start, err := time.Parse("2006-01-02", date)
		if err != nil {
			// 日期键损坏的条目跳过，不让单条脏数据毁掉整个导出
			s.logger.Warn("跳过无效日期的日记录", zap.String("date", date))
			continue
		}

		evt := cal.AddEvent(fmt.Sprintf("holiday-%s@classtrack", date))
		evt.SetSummary("假期")
		evt.SetAllDayStartAt(start)
		evt.SetAllDayEndAt(start.AddDate(0, 0, 1))
		evt.SetDtStampTime(s.now().UTC())
		if day.Notes != "" {
			evt.SetDescription(day.Notes)
		}
	}

	buf := bytes.NewBufferString(cal.Serialize())
	return buf, "假期日历.ics", nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
