package permission

import "wisefido-guardian/internal/models"

// alertDataCategory 报警类型对应的底层数据类别
var alertDataCategory = map[models.AlertType]models.Category{
	models.AlertVitalSigns:  models.CategoryVitals,
	models.AlertMedication:  models.CategoryMedications,
	models.AlertAppointment: models.CategoryAppointments,
	models.AlertDevice:      models.CategoryDeviceManagement,
}

// AlertCategories 接收某类型报警需要的全部类别：alerts 加上该类型的数据类别（如有）
func AlertCategories(t models.AlertType) []models.Category {
	categories := []models.Category{models.CategoryAlerts}
	if c, ok := alertDataCategory[t]; ok {
		categories = append(categories, c)
	}
	return categories
}

// CanReceiveAlert 对已加载的关联判定接收资格，返回每个类别的判定
// 任一类别被拒绝则不可接收
func CanReceiveAlert(link *models.CareCircleLink, recipientID string, alert *models.Alert) (bool, []Decision) {
	categories := AlertCategories(alert.Type)
	decisions := make([]Decision, 0, len(categories))
	allowed := true
	for _, category := range categories {
		d := Evaluate(link, Request{
			RequesterID: recipientID,
			Role:        models.RoleCaregiver,
			SubjectID:   alert.SubjectID,
			Category:    category,
			Action:      models.ActionRead,
		})
		decisions = append(decisions, d)
		if !d.Allowed {
			allowed = false
		}
	}
	return allowed, decisions
}
