package model

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportStatus is the triage state of a report.
type ReportStatus string

const (
	StatusPending    ReportStatus = "pending"
	StatusInProgress ReportStatus = "in_progress"
	StatusResolved   ReportStatus = "resolved"
)

// Valid reports whether s is one of the known statuses.
func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Severity grades how urgent a report is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Category classifies the kind of community issue.
type Category string

const (
	CategoryRoad        Category = "road"
	CategoryWater       Category = "water"
	CategorySanitation  Category = "sanitation"
	CategoryElectricity Category = "electricity"
	CategoryWaste       Category = "waste"
	CategoryOther       Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryRoad, CategoryWater, CategorySanitation, CategoryElectricity, CategoryWaste, CategoryOther:
		return true
	}
	return false
}

// GeoPointType is the only GeoJSON geometry reports carry.
const GeoPointType = "Point"

// GeoPoint is a GeoJSON point; Coordinates is [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// NewGeoPoint builds a point from longitude and latitude.
func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: GeoPointType, Coordinates: []float64{lng, lat}}
}

// Valid reports whether the point holds exactly two finite, in-range numbers.
func (p GeoPoint) Valid() bool {
	if p.Type != "" && p.Type != GeoPointType {
		return false
	}
	if len(p.Coordinates) != 2 {
		return false
	}
	lng, lat := p.Coordinates[0], p.Coordinates[1]
	for _, v := range p.Coordinates {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

// Report is a user-submitted community issue.
type Report struct {
	ID          uuid.UUID    `json:"id" gorm:"type:char(36);primaryKey"`
	Title       string       `json:"title" gorm:"size:200;not null"`
	Description string       `json:"description" gorm:"type:text;not null"`
	Category    Category     `json:"category" gorm:"size:30;not null;default:'other';index"`
	Severity    Severity     `json:"severity" gorm:"size:10;not null;index"`
	Status      ReportStatus `json:"status" gorm:"size:20;not null;default:'pending';index"`
	Location    GeoPoint     `json:"location" gorm:"-"`
	Longitude   float64      `json:"-" gorm:"not null;index:idx_reports_location,priority:1"`
	Latitude    float64      `json:"-" gorm:"not null;index:idx_reports_location,priority:2"`
	ImageURL    string       `json:"imageUrl,omitempty" gorm:"size:512"`
	CreatedBy   uuid.UUID    `json:"createdBy" gorm:"type:char(36);not null;index"`
	UpdatedBy   *uuid.UUID   `json:"updatedBy,omitempty" gorm:"type:char(36)"`
	CreatedAt   time.Time    `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// BeforeCreate sets UUID and default status before creating the record.
func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.Category == "" {
		r.Category = CategoryOther
	}
	return nil
}

// BeforeSave copies the GeoJSON location into the indexed columns.
func (r *Report) BeforeSave(tx *gorm.DB) error {
	if len(r.Location.Coordinates) == 2 {
		r.Longitude = r.Location.Coordinates[0]
		r.Latitude = r.Location.Coordinates[1]
	}
	return nil
}

// AfterFind rebuilds the GeoJSON location from the stored columns.
func (r *Report) AfterFind(tx *gorm.DB) error {
	r.Location = NewGeoPoint(r.Longitude, r.Latitude)
	return nil
}
