// Package es 提供了将线索写入 Elasticsearch 检索索引的功能。
package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"site-assistant-go/internal/config"
	"site-assistant-go/pkg/log"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// leadIndexMapping 只为常用检索字段声明类型，其余自定义字段交给动态映射。
const leadIndexMapping = `{
	"mappings": {
		"properties": {
			"name": { "type": "text" },
			"email": { "type": "keyword" },
			"companyName": { "type": "text" },
			"mobileNumber": { "type": "keyword" },
			"service": { "type": "keyword" },
			"timestamp": { "type": "date" }
		}
	}
}`

// LeadIndexer 将线索文档写入 Elasticsearch。
type LeadIndexer struct {
	client    *elasticsearch.Client
	indexName string
}

// NewLeadIndexer 创建客户端并确保索引存在。
func NewLeadIndexer(esCfg config.ElasticsearchConfig) (*LeadIndexer, error) {
	var addresses []string
	for _, a := range strings.Split(esCfg.Addresses, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addresses = append(addresses, a)
		}
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Elasticsearch 客户端失败: %w", err)
	}
	indexer := &LeadIndexer{client: client, indexName: esCfg.IndexName}
	if err := indexer.createIndexIfNotExists(context.Background()); err != nil {
		return nil, err
	}
	return indexer, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (i *LeadIndexer) createIndexIfNotExists(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.indexName}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", i.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = i.client.Indices.Create(
		i.indexName,
		i.client.Indices.Create.WithBody(strings.NewReader(leadIndexMapping)),
		i.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("创建索引失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("创建索引时 Elasticsearch 返回错误: %s", res.String())
	}
	log.Infof("索引 '%s' 创建成功", i.indexName)
	return nil
}

// IndexLead 写入一条线索文档；documentID 为空时由 Elasticsearch 生成。
func (i *LeadIndexer) IndexLead(ctx context.Context, documentID string, doc any) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal lead document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.indexName,
		DocumentID: documentID,
		Body:       bytes.NewReader(docBytes),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to index lead: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch rejected lead document: %s", res.String())
	}
	return nil
}
