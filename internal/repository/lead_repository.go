package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"site-assistant-go/internal/model"
	"site-assistant-go/pkg/log"
	"sync"

	"gorm.io/gorm"
)

// ErrLeadsUnavailable 表示线索存储无法读取（文件缺失、损坏或数据库不可用）。
var ErrLeadsUnavailable = errors.New("lead store unavailable")

// LeadRepository 定义了线索集合的持久化操作，集合保持插入顺序。
type LeadRepository interface {
	Append(ctx context.Context, lead model.Lead) error
	List(ctx context.Context) ([]model.Lead, error)
}

type fileLeadRepository struct {
	mu   sync.Mutex
	path string
}

// NewFileLeadRepository 创建基于单个 JSON 文件的线索存储。
// 每次写入都是“读取整个数组 → 追加 → 整体写回”的快照语义；进程内写入串行化，多进程并发写仍可能丢失更新。
func NewFileLeadRepository(path string) LeadRepository {
	return &fileLeadRepository{path: path}
}

func (r *fileLeadRepository) readAll() ([]model.Lead, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var leads []model.Lead
	if err := dec.Decode(&leads); err != nil {
		return nil, err
	}
	return leads, nil
}

// Append 追加一条线索。文件不存在或无法解析时视为空集合，而不是失败。
func (r *fileLeadRepository) Append(_ context.Context, lead model.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	leads, err := r.readAll()
	if err != nil {
		log.Infof("线索文件不可读，从空集合开始: path=%s, err=%v", r.path, err)
		leads = nil
	}
	leads = append(leads, lead)

	data, err := json.MarshalIndent(leads, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal leads: %w", err)
	}

	// 先写临时文件再重命名，避免写到一半时留下损坏的快照
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp leads file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write leads file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close leads file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace leads file: %w", err)
	}
	return nil
}

// List 返回全部线索；读取失败时返回 ErrLeadsUnavailable。
func (r *fileLeadRepository) List(_ context.Context) ([]model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	leads, err := r.readAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLeadsUnavailable, err)
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	return leads, nil
}

type mysqlLeadRepository struct {
	db *gorm.DB
}

// NewMySQLLeadRepository 创建基于 GORM 的线索存储，并自动迁移 leads 表。
func NewMySQLLeadRepository(db *gorm.DB) (LeadRepository, error) {
	if err := db.AutoMigrate(&model.LeadRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate leads table: %w", err)
	}
	return &mysqlLeadRepository{db: db}, nil
}

func (r *mysqlLeadRepository) Append(ctx context.Context, lead model.Lead) error {
	payload, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("failed to marshal lead: %w", err)
	}
	record := model.LeadRecord{
		Name:         lead.Name(),
		Email:        lead.Email(),
		CompanyName:  lead.CompanyName(),
		MobileNumber: lead.MobileNumber(),
		Service:      lead.Service(),
		Payload:      string(payload),
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

func (r *mysqlLeadRepository) List(ctx context.Context) ([]model.Lead, error) {
	var records []model.LeadRecord
	if err := r.db.WithContext(ctx).Order("id asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLeadsUnavailable, err)
	}
	leads := make([]model.Lead, 0, len(records))
	for _, rec := range records {
		dec := json.NewDecoder(bytes.NewReader([]byte(rec.Payload)))
		dec.UseNumber()
		var lead model.Lead
		if err := dec.Decode(&lead); err != nil {
			log.Warnf("跳过无法解析的线索记录: id=%d, err=%v", rec.ID, err)
			continue
		}
		leads = append(leads, lead)
	}
	return leads, nil
}
