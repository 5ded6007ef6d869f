package db

import "gorm.io/gorm"

type Queries struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Queries {
	return &Queries{db: db}
}

// Init 初始化表结构
func Init(db *gorm.DB) error {
	return db.AutoMigrate(Session{}, CreditAccount{}, Transaction{}, ContinuationLink{}, Message{})
}
