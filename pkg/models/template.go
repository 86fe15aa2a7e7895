package models

import (
	"gorm.io/gorm"
)

// Template is a reusable contract body
type Template struct {
	gorm.Model
	Name        string `gorm:"size:255;not null;index"`
	Description string `gorm:"type:text"`
	Content     string `gorm:"type:text;not null"`
	Category    string `gorm:"size:100;index"`
	CreatedByID *uint
	CreatedBy   *User
	Tags        []Tag `gorm:"many2many:template_tags;"`
}

// Tag labels templates
type Tag struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Templates []Template `gorm:"many2many:template_tags;" json:"-"`
}

// TagNames returns the template's tag names in stored order.
func (t Template) TagNames() []string {
	names := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		names = append(names, tag.Name)
	}
	return names
}
