package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/C4erries/edumax/internal/model"
	"github.com/C4erries/edumax/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportSchedule 导出课表为 Excel：每节课一行（节次、时间、科目、教师、教室、班级）
	ExportSchedule(ctx context.Context, scope model.Scope, weekStart *time.Time) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo     *repository.Repository
	schedule ScheduleService
	logger   *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, schedule ScheduleService, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, schedule: schedule, logger: logger}
}

var exportHeaders = []string{"节次", "时间", "科目", "教师", "教室", "班级"}

// ═══════════════════════════════════════════════════════════
// ExportSchedule — 导出课表为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 第 1 行：标题（作用域名称 + 周）
//   - 第 2 行：表头
//   - 第 3 行起：课程，顺序与 GET /schedule 一致；无课程时只有表头
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportSchedule(ctx context.Context, scope model.Scope, weekStart *time.Time) (*bytes.Buffer, string, error) {
	// 1. 查询课表
	sched, err := s.schedule.GetSchedule(ctx, scope, weekStart)
	if err != nil {
		return nil, "", err
	}

	// 2. 作用域名称
	scopeName := s.scopeName(ctx, scope)
	title := scopeName + " 课表"
	if weekStart != nil {
		w := model.WeekOf(*weekStart)
		title = fmt.Sprintf("%s（%s ~ %s）", title, w.Monday.Format(model.DateLayout), w.Sunday.Format(model.DateLayout))
	}

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "课表"
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		s.logger.Error("创建 Sheet 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	// 设置列宽
	f.SetColWidth(sheetName, "A", "A", 8)
	f.SetColWidth(sheetName, "B", "B", 16)
	f.SetColWidth(sheetName, "C", "C", 24)
	f.SetColWidth(sheetName, "D", "D", 20)
	f.SetColWidth(sheetName, "E", "E", 20)
	f.SetColWidth(sheetName, "F", "F", 30)

	// 样式
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", title)
	f.MergeCell(sheetName, "A1", fmt.Sprintf("%s1", colName(len(exportHeaders)-1)))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	row := 2
	for i, h := range exportHeaders {
		f.SetCellValue(sheetName, cell(colName(i), row), h)
	}
	f.SetCellStyle(sheetName, cell("A", row), cell(colName(len(exportHeaders)-1), row), headerStyle)

	// 数据行
	row = 3
	for _, l := range sched.List {
		timeRange := "-"
		if l.Time != nil {
			timeRange = *l.Time
		}
		values := []any{l.PairNo, timeRange, l.Subject, l.Teacher, l.Room, strings.Join(l.Groups, ", ")}
		for i, v := range values {
			f.SetCellValue(sheetName, cell(colName(i), row), v)
		}
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("课表_%s.xlsx", scopeName)
	if weekStart != nil {
		filename = fmt.Sprintf("课表_%s_%s.xlsx", scopeName, model.WeekOf(*weekStart).Monday.Format(model.DateLayout))
	}
	return buf, filename, nil
}

// scopeName 班级名称或教师姓名，查不到时使用 ID
func (s *exportService) scopeName(ctx context.Context, scope model.Scope) string {
	switch scope.Type {
	case model.ScopeGroup:
		if g, err := s.repo.Group.GetByID(ctx, scope.ID); err == nil {
			return g.Name
		}
	case model.ScopeTeacher:
		if u, err := s.repo.User.GetByID(ctx, scope.ID); err == nil {
			return u.FullName
		}
	}
	return scope.ID
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
