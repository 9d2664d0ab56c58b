package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"site-assistant-go/pkg/storage"

	"github.com/minio/minio-go/v7"
)

// KnowledgeSource 提供网站知识（注入系统提示的 JSON 文档）。
type KnowledgeSource interface {
	Load(ctx context.Context) (json.RawMessage, error)
}

type fileKnowledgeSource struct {
	path string
}

// NewFileKnowledgeSource 从本地 JSON 文件读取网站知识。
func NewFileKnowledgeSource(path string) KnowledgeSource {
	return &fileKnowledgeSource{path: path}
}

func (s *fileKnowledgeSource) Load(_ context.Context) (json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge file: %w", err)
	}
	return compactKnowledge(data)
}

type minioKnowledgeSource struct {
	client     *minio.Client
	bucketName string
	objectName string
}

// NewMinioKnowledgeSource 从 MinIO 对象读取网站知识，便于不重新部署即可更新内容。
func NewMinioKnowledgeSource(client *minio.Client, bucketName, objectName string) KnowledgeSource {
	return &minioKnowledgeSource{client: client, bucketName: bucketName, objectName: objectName}
}

func (s *minioKnowledgeSource) Load(ctx context.Context) (json.RawMessage, error) {
	data, err := storage.ReadObject(ctx, s.client, s.bucketName, s.objectName)
	if err != nil {
		return nil, err
	}
	return compactKnowledge(data)
}

// compactKnowledge 校验并压缩 JSON，与 JSON.stringify 的紧凑输出一致。
func compactKnowledge(data []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, fmt.Errorf("knowledge document is not valid JSON: %w", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}
