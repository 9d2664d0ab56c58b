package model

import "time"

// LeadRecord 是线索在 MySQL 中的存储形式。常用字段单独成列便于查询，完整内容保存在 Payload 中。
type LeadRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(255)" json:"name"`
	Email        string    `gorm:"type:varchar(255);index" json:"email"`
	CompanyName  string    `gorm:"type:varchar(255)" json:"companyName"`
	MobileNumber string    `gorm:"type:varchar(64)" json:"mobileNumber"`
	Service      string    `gorm:"type:varchar(255)" json:"service"`
	Payload      string    `gorm:"type:json;not null" json:"payload"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (LeadRecord) TableName() string {
	return "leads"
}
