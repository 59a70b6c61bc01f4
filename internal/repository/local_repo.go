package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"classtrack/backend/internal/model"
)

// ── 本地工作集命名空间 ──

const (
	nsSubjects = "subjects"
	nsLectures = "lectures"
	nsDays     = "days"
	nsProfile  = "profile"
)

func localKey(uid, namespace string) string {
	return fmt.Sprintf("local:%s:%s", uid, namespace)
}

// LocalRepository 本地工作集的类型化访问层
// 每个命名空间整体序列化为单个 Blob；写入是全量数组交换，要么全部
// 生效要么完全不变，本地侧不会出现半应用状态
type LocalRepository struct {
	store LocalStore
}

// NewLocalRepository 创建 LocalRepository 实例
func NewLocalRepository(store LocalStore) *LocalRepository {
	return &LocalRepository{store: store}
}

// ── 课程记录集 ──

// Lectures 读取用户的全部本地课程记录
func (l *LocalRepository) Lectures(ctx context.Context, uid string) ([]model.LectureRecord, error) {
	var records []model.LectureRecord
	if err := l.load(ctx, uid, nsLectures, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SaveLectures 全量交换用户的本地课程记录
func (l *LocalRepository) SaveLectures(ctx context.Context, uid string, records []model.LectureRecord) error {
	if records == nil {
		records = []model.LectureRecord{}
	}
	return l.save(ctx, uid, nsLectures, records)
}

// QueryLectures 按谓词筛选课程记录，返回可重复遍历的惰性序列
func (l *LocalRepository) QueryLectures(ctx context.Context, uid string, pred func(model.LectureRecord) bool) (iter.Seq[model.LectureRecord], error) {
	records, err := l.Lectures(ctx, uid)
	if err != nil {
		return nil, err
	}
	return func(yield func(model.LectureRecord) bool) {
		for _, r := range records {
			if pred != nil && !pred(r) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}, nil
}

// ── 科目集 ──

// Subjects 读取用户的全部科目
func (l *LocalRepository) Subjects(ctx context.Context, uid string) ([]model.Subject, error) {
	var subjects []model.Subject
	if err := l.load(ctx, uid, nsSubjects, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// SaveSubjects 全量交换用户的科目集
func (l *LocalRepository) SaveSubjects(ctx context.Context, uid string, subjects []model.Subject) error {
	if subjects == nil {
		subjects = []model.Subject{}
	}
	return l.save(ctx, uid, nsSubjects, subjects)
}

// ── 日记录集 ──

// Days 读取用户的日记录（按日期索引）
func (l *LocalRepository) Days(ctx context.Context, uid string) (map[string]model.DayRecord, error) {
	var days map[string]model.DayRecord
	if err := l.load(ctx, uid, nsDays, &days); err != nil {
		return nil, err
	}
	if days == nil {
		days = make(map[string]model.DayRecord)
	}
	return days, nil
}

// SaveDays 全量交换用户的日记录
func (l *LocalRepository) SaveDays(ctx context.Context, uid string, days map[string]model.DayRecord) error {
	if days == nil {
		days = map[string]model.DayRecord{}
	}
	return l.save(ctx, uid, nsDays, days)
}

// ── 档案镜像 ──

// Profile 读取本地档案镜像；不存在时返回零值档案
func (l *LocalRepository) Profile(ctx context.Context, uid string) (model.LocalProfile, error) {
	var profile model.LocalProfile
	if err := l.load(ctx, uid, nsProfile, &profile); err != nil {
		return model.LocalProfile{}, err
	}
	return profile, nil
}

// SaveProfile 写入本地档案镜像
func (l *LocalRepository) SaveProfile(ctx context.Context, uid string, profile model.LocalProfile) error {
	return l.save(ctx, uid, nsProfile, profile)
}

// ── 整体清理 ──

// ClearAll 清空用户的全部本地集合（登出转换：云端数据不受影响）
func (l *LocalRepository) ClearAll(ctx context.Context, uid string) error {
	for _, ns := range []string{nsSubjects, nsLectures, nsDays, nsProfile} {
		if err := l.store.Remove(ctx, localKey(uid, ns)); err != nil {
			return err
		}
	}
	return nil
}

// ── 序列化辅助 ──

func (l *LocalRepository) load(ctx context.Context, uid, namespace string, out interface{}) error {
	data, err := l.store.Load(ctx, localKey(uid, namespace))
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (l *LocalRepository) save(ctx context.Context, uid, namespace string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return l.store.Save(ctx, localKey(uid, namespace), data)
}
