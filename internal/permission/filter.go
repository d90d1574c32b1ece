package permission

import "wisefido-guardian/internal/models"

// FilterDataByPermissions 按字段所属类别裁剪记录
// 映射到类别的字段仅在该类别被授权时保留；未映射的字段视为非敏感，原样保留
func FilterDataByPermissions(
	record map[string]any,
	perms models.PermissionSet,
	categoryMap map[string]models.Category,
) map[string]any {
	out := make(map[string]any, len(record))
	for field, value := range record {
		category, mapped := categoryMap[field]
		if mapped && !perms.Allows(category) {
			continue
		}
		out[field] = value
	}
	return out
}

// AlertFieldCategories 报警负载中敏感字段所属的类别
var AlertFieldCategories = map[string]models.Category{
	"metric":         models.CategoryVitals,
	"observed_value": models.CategoryVitals,
	"medication_id":  models.CategoryMedications,
	"device_id":      models.CategoryDeviceManagement,
}

// 预设权限（仅用于邀请护理人时的初始值）

// FullAccess 全部权限
func FullAccess() models.PermissionSet {
	return models.PermissionSet{
		CanViewVitals:        true,
		CanViewMedications:   true,
		CanViewAppointments:  true,
		CanViewHealthRecords: true,
		CanReceiveAlerts:     true,
		CanSendMessages:      true,
		CanManageDevices:     true,
	}
}

// DefaultAccess 以只读为主，不含设备管理
func DefaultAccess() models.PermissionSet {
	return models.PermissionSet{
		CanViewVitals:        true,
		CanViewMedications:   true,
		CanViewAppointments:  true,
		CanViewHealthRecords: true,
		CanReceiveAlerts:     true,
		CanSendMessages:      true,
		CanManageDevices:     false,
	}
}

// LimitedAccess 仅生命体征和报警
func LimitedAccess() models.PermissionSet {
	return models.PermissionSet{
		CanViewVitals:    true,
		CanReceiveAlerts: true,
	}
}

// Preset 按名称取预设，未知名称返回 ok=false
func Preset(name string) (models.PermissionSet, bool) {
	switch name {
	case "full":
		return FullAccess(), true
	case "default":
		return DefaultAccess(), true
	case "limited":
		return LimitedAccess(), true
	default:
		return models.PermissionSet{}, false
	}
}
