package models

import (
	"strings"
	"time"

	"github.com/camden-git/fieldsurvey/survey"
)

// DocumentItemName is the name given to the item holding the full form.
const DocumentItemName = "Formulário Completo"

// Survey is the listing record of a survey. Its searchable columns are copied
// out of the document's basic data on every save.
type Survey struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	UserID       uint         `json:"user_id" gorm:"index;not null"`
	Title        string       `json:"title" gorm:"not null"`
	Description  *string      `json:"description"`
	Network      string       `json:"rede" gorm:"column:rede"`
	Brand        string       `json:"bandeira" gorm:"column:bandeira"`
	CNPJ         string       `json:"cnpj" gorm:"column:cnpj"`
	TradeName    string       `json:"nome_fantasia" gorm:"column:nome_fantasia"`
	ManagerName  string       `json:"gerente_nome" gorm:"column:gerente_nome"`
	ManagerPhone string       `json:"gerente_telefone" gorm:"column:gerente_telefone"`
	Items        []SurveyItem `json:"items,omitempty" gorm:"foreignKey:SurveyID"`
	CreatedAt    time.Time    `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// SurveyItem stores one document of a survey. Surveys written by the app
// carry exactly one item named DocumentItemName.
type SurveyItem struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	SurveyID  uint             `json:"survey_id" gorm:"index;not null"`
	UserID    uint             `json:"user_id" gorm:"index;not null"`
	Name      string           `json:"name" gorm:"not null"`
	Document  *survey.Document `json:"document" gorm:"serializer:surveydoc;type:text"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// DocumentItem returns the item holding the form document, if loaded.
func (s *Survey) DocumentItem() (*SurveyItem, bool) {
	for i := range s.Items {
		if s.Items[i].Name == DocumentItemName {
			return &s.Items[i], true
		}
	}
	if len(s.Items) > 0 {
		return &s.Items[0], true
	}
	return nil, false
}

// Matches reports whether the survey passes the list filter: a
// case-insensitive substring of title, rede, bandeira or nome fantasia, or a
// plain substring of the CNPJ. An empty filter matches everything.
func (s *Survey) Matches(filter string) bool {
	if filter == "" {
		return true
	}
	q := strings.ToLower(filter)
	for _, v := range []string{s.Title, s.Network, s.Brand, s.TradeName} {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return strings.Contains(s.CNPJ, filter)
}

// ApplyDocument copies the listing columns out of a document's basic data.
// The title is the trade name and the description is the brand, or nil when
// the brand is empty.
func (s *Survey) ApplyDocument(doc *survey.Document) {
	b := doc.BasicData
	if b == nil {
		b = &survey.BasicData{}
	}
	s.Title = b.TradeName
	s.Description = nil
	if b.Brand != "" {
		brand := b.Brand
		s.Description = &brand
	}
	s.Network = b.Network
	s.Brand = b.Brand
	s.CNPJ = b.CNPJ
	s.TradeName = b.TradeName
	s.ManagerName = b.ManagerName
	s.ManagerPhone = b.ManagerPhone
}
