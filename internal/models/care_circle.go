package models

import "time"

// Category 权限数据类别
type Category string

const (
	CategoryVitals           Category = "vitals"
	CategoryMedications      Category = "medications"
	CategoryAppointments     Category = "appointments"
	CategoryHealthRecords    Category = "health_records"
	CategoryAlerts           Category = "alerts"
	CategoryMessaging        Category = "messaging"
	CategoryDeviceManagement Category = "device_management"
)

// AllCategories 所有权限类别
var AllCategories = []Category{
	CategoryVitals,
	CategoryMedications,
	CategoryAppointments,
	CategoryHealthRecords,
	CategoryAlerts,
	CategoryMessaging,
	CategoryDeviceManagement,
}

// Action 操作类型
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// Role 请求者角色
type Role string

const (
	RolePrimary   Role = "primary" // 受监护人本人
	RoleCaregiver Role = "caregiver"
)

// PermissionSet 按数据类别的布尔权限
type PermissionSet struct {
	CanViewVitals        bool `json:"can_view_vitals"`
	CanViewMedications   bool `json:"can_view_medications"`
	CanViewAppointments  bool `json:"can_view_appointments"`
	CanViewHealthRecords bool `json:"can_view_health_records"`
	CanReceiveAlerts     bool `json:"can_receive_alerts"`
	CanSendMessages      bool `json:"can_send_messages"`
	CanManageDevices     bool `json:"can_manage_devices"`
}

// Allows 返回类别对应的权限位，未知类别一律 false
func (p PermissionSet) Allows(c Category) bool {
	switch c {
	case CategoryVitals:
		return p.CanViewVitals
	case CategoryMedications:
		return p.CanViewMedications
	case CategoryAppointments:
		return p.CanViewAppointments
	case CategoryHealthRecords:
		return p.CanViewHealthRecords
	case CategoryAlerts:
		return p.CanReceiveAlerts
	case CategoryMessaging:
		return p.CanSendMessages
	case CategoryDeviceManagement:
		return p.CanManageDevices
	default:
		return false
	}
}

// LinkStatus 关联状态
type LinkStatus string

const (
	LinkActive    LinkStatus = "active"
	LinkSuspended LinkStatus = "suspended"
)

// CareCircleLink 受监护人与护理人的关联（每对 subject/caregiver 至多一条）
type CareCircleLink struct {
	SubjectID        string        `json:"subject_id" db:"subject_id"`
	CaregiverID      string        `json:"caregiver_id" db:"caregiver_id"`
	RelationshipType string        `json:"relationship_type" db:"relationship_type"`
	Permissions      PermissionSet `json:"permissions" db:"permissions"` // JSONB
	// WriteGrants 被明确提升为可写的类别（默认护理人只读）
	WriteGrants  []Category `json:"write_grants,omitempty" db:"write_grants"`
	Status       LinkStatus `json:"status" db:"status"`
	JoinedAt     time.Time  `json:"joined_at" db:"joined_at"`
	LastActiveAt time.Time  `json:"last_active_at" db:"last_active_at"`
}

// Active 是否为有效关联
func (l *CareCircleLink) Active() bool {
	return l != nil && l.Status == LinkActive
}

// HasWriteGrant 是否被授予该类别的写权限
func (l *CareCircleLink) HasWriteGrant(c Category) bool {
	for _, g := range l.WriteGrants {
		if g == c {
			return true
		}
	}
	return false
}
