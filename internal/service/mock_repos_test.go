package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"classtrack/backend/internal/model"
	"classtrack/backend/internal/repository"
)

// ── Mock LocalStore ──

type mockLocalStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	// failSaves 包含的键写入时报错，用于验证半应用状态不会发生
	failSaves map[string]bool
}

func newMockLocalStore() *mockLocalStore {
	return &mockLocalStore{
		blobs:     make(map[string][]byte),
		failSaves: make(map[string]bool),
	}
}

func (m *mockLocalStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, nil
	}
	return data, nil
}

func (m *mockLocalStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves[key] {
		return fmt.Errorf("模拟写入失败: %s", key)
	}
	m.blobs[key] = data
	return nil
}

func (m *mockLocalStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

// ── Mock CloudRepository ──

type mockCloudRepo struct {
	mu   sync.Mutex
	docs map[string]*model.AttendanceDocument // "uid|period|date" → doc
	// failTx 为 true 时 RunTransaction 模拟云端不可用
	failTx bool
}

func newMockCloudRepo() *mockCloudRepo {
	return &mockCloudRepo{docs: make(map[string]*model.AttendanceDocument)}
}

func docKey(uid, periodID, date string) string {
	return uid + "|" + periodID + "|" + date
}

// seedDoc 预置一个云端文档（测试准备用）
func (m *mockCloudRepo) seedDoc(uid, periodID, date string, schemaVersion int, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[docKey(uid, periodID, date)] = &model.AttendanceDocument{
		UID:           uid,
		PeriodID:      periodID,
		Date:          date,
		SchemaVersion: schemaVersion,
		Payload:       model.JSONPayload(payload),
		UpdatedAt:     time.Now(),
	}
}

func (m *mockCloudRepo) GetDocument(_ context.Context, uid, periodID, date string) (*model.AttendanceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docKey(uid, periodID, date)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return doc, nil
}

func (m *mockCloudRepo) ListDocuments(_ context.Context, uid, periodID string) ([]model.AttendanceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AttendanceDocument
	for _, doc := range m.docs {
		if doc.UID == uid && doc.PeriodID == periodID {
			out = append(out, *doc)
		}
	}
	sortDocs(out)
	return out, nil
}

func (m *mockCloudRepo) ListAllDocuments(_ context.Context, uid string) ([]model.AttendanceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AttendanceDocument
	for _, doc := range m.docs {
		if doc.UID == uid {
			out = append(out, *doc)
		}
	}
	sortDocs(out)
	return out, nil
}

func (m *mockCloudRepo) ListLegacyDocuments(_ context.Context, uid string) ([]model.AttendanceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AttendanceDocument
	for _, doc := range m.docs {
		if doc.UID == uid && doc.SchemaVersion == model.SchemaLegacyAggregate {
			out = append(out, *doc)
		}
	}
	sortDocs(out)
	return out, nil
}

// RunTransaction 串行化模拟：读当前载荷（含旧版升级）→ fn → 写回当前版本
func (m *mockCloudRepo) RunTransaction(_ context.Context, uid, periodID, date string, fn repository.MergeFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failTx {
		return fmt.Errorf("模拟云端不可用")
	}

	key := docKey(uid, periodID, date)
	doc, ok := m.docs[key]
	if !ok {
		doc = &model.AttendanceDocument{
			UID:           uid,
			PeriodID:      periodID,
			Date:          date,
			SchemaVersion: model.SchemaLectureRecords,
			Payload:       model.JSONPayload("[]"),
		}
		m.docs[key] = doc
	}

	current, err := doc.DecodeRecords()
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	payload, err := model.EncodeRecords(next)
	if err != nil {
		return err
	}
	doc.SchemaVersion = model.SchemaLectureRecords
	doc.Payload = payload
	doc.UpdatedAt = time.Now()
	return nil
}

func sortDocs(docs []model.AttendanceDocument) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].PeriodID != docs[j].PeriodID {
			return docs[i].PeriodID < docs[j].PeriodID
		}
		return docs[i].Date < docs[j].Date
	})
}

// ── Mock ProfileRepository ──

type mockProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[string]*model.Profile)}
}

func (m *mockProfileRepo) Get(_ context.Context, uid string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[uid]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockProfileRepo) SetActivePeriod(_ context.Context, uid, periodID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[uid] = &model.Profile{UID: uid, ActivePeriodID: periodID, UpdatedAt: time.Now()}
	return nil
}

// ── Mock PeriodRepository ──

type mockPeriodRepo struct {
	mu      sync.Mutex
	periods map[string]model.Period // "uid|period" → Period
}

func newMockPeriodRepo() *mockPeriodRepo {
	return &mockPeriodRepo{periods: make(map[string]model.Period)}
}

func (m *mockPeriodRepo) CreateIfAbsent(_ context.Context, period *model.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := period.UID + "|" + period.PeriodID
	if _, ok := m.periods[key]; ok {
		return nil
	}
	period.CreatedAt = time.Now()
	m.periods[key] = *period
	return nil
}

func (m *mockPeriodRepo) Exists(_ context.Context, uid, periodID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.periods[uid+"|"+periodID]
	return ok, nil
}

func (m *mockPeriodRepo) List(_ context.Context, uid string) ([]model.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Period
	for _, p := range m.periods {
		if p.UID == uid {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // user_id → user
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.UserID == "" {
		m.seq++
		user.UserID = fmt.Sprintf("user-%03d", m.seq)
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock OutboxEnqueuer ──

type mockOutbox struct {
	mu    sync.Mutex
	tasks []string // "uid|period|date"
}

func (m *mockOutbox) EnqueueSync(_ context.Context, uid, periodID, date string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, uid+"|"+periodID+"|"+date)
}

func (m *mockOutbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// ── 测试辅助 ──

// repositoryFixture 封装测试数据准备的便捷方法
type repositoryFixture struct {
	repo *repository.Repository
	ctx  context.Context
}

func (f *repositoryFixture) saveSubjects(t *testing.T, uid string, subjects []model.Subject) {
	t.Helper()
	if err := f.repo.Local.SaveSubjects(f.ctx, uid, subjects); err != nil {
		t.Fatalf("准备科目数据失败: %v", err)
	}
}

func (f *repositoryFixture) saveLectures(t *testing.T, uid string, records []model.LectureRecord) {
	t.Helper()
	if err := f.repo.Local.SaveLectures(f.ctx, uid, records); err != nil {
		t.Fatalf("准备课程记录失败: %v", err)
	}
}

func (f *repositoryFixture) saveDays(t *testing.T, uid string, days map[string]model.DayRecord) {
	t.Helper()
	if err := f.repo.Local.SaveDays(f.ctx, uid, days); err != nil {
		t.Fatalf("准备日记录失败: %v", err)
	}
}

func (f *repositoryFixture) saveProfile(t *testing.T, uid string, profile model.LocalProfile) {
	t.Helper()
	if err := f.repo.Local.SaveProfile(f.ctx, uid, profile); err != nil {
		t.Fatalf("准备本地档案失败: %v", err)
	}
}

// newTestRepo 构建基于内存 Mock 的 Repository 聚合
func newTestRepo() (*repository.Repository, *mockCloudRepo, *mockProfileRepo, *mockPeriodRepo) {
	cloud := newMockCloudRepo()
	profile := newMockProfileRepo()
	period := newMockPeriodRepo()
	repo := &repository.Repository{
		User:    newMockUserRepo(),
		Period:  period,
		Profile: profile,
		Cloud:   cloud,
		Local:   repository.NewLocalRepository(newMockLocalStore()),
	}
	return repo, cloud, profile, period
}
