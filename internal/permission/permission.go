package permission

import (
	"context"
	"fmt"
	"time"

	"wisefido-guardian/internal/models"
)

// 判定原因（写入审计记录）
const (
	ReasonSelfAccess      = "self_access"
	ReasonInvalidRequest  = "invalid_request"
	ReasonUnknownCategory = "unknown_category"
	ReasonNoLink          = "no_care_circle_link"
	ReasonLinkInactive    = "link_inactive"
	ReasonCategoryDenied  = "category_not_granted"
	ReasonReadOnly        = "category_read_only"
	ReasonWriteNotGranted = "write_not_granted"
	ReasonGranted         = "granted"
)

type writeMode int

const (
	writeNever        writeMode = iota // 护理人只读
	writeByPermission                  // 权限位本身即写权限（如发送消息）
	writeByGrant                       // 需要在关联上被明确提升
)

// caregiverWrites 各类别对护理人写操作的支持方式，未列出的类别只读
var caregiverWrites = map[models.Category]writeMode{
	models.CategoryMessaging:        writeByPermission,
	models.CategoryDeviceManagement: writeByGrant,
}

// Request 一次权限检查的输入
type Request struct {
	RequesterID string
	Role        models.Role
	SubjectID   string
	Category    models.Category
	Action      models.Action
}

// Decision 权限判定结果（拒绝是正常结果，不是错误）
type Decision struct {
	Request
	Allowed bool
	Reason  string
}

// AuditRecord 转换为审计记录
func (d Decision) AuditRecord(at time.Time) models.AuditRecord {
	return models.AuditRecord{
		Timestamp:   at,
		RequesterID: d.RequesterID,
		Role:        d.Role,
		SubjectID:   d.SubjectID,
		Category:    d.Category,
		Action:      d.Action,
		Allowed:     d.Allowed,
		Reason:      d.Reason,
	}
}

func knownCategory(c models.Category) bool {
	for _, known := range models.AllCategories {
		if known == c {
			return true
		}
	}
	return false
}

// IsSelf 请求者是否以本人身份访问自己的数据
func (r Request) IsSelf() bool {
	return r.RequesterID != "" && r.RequesterID == r.SubjectID && r.Role == models.RolePrimary
}

// Evaluate 纯函数：根据关联（可为 nil）判定一次请求
func Evaluate(link *models.CareCircleLink, req Request) Decision {
	d := Decision{Request: req}

	if req.RequesterID == "" || req.SubjectID == "" {
		d.Reason = ReasonInvalidRequest
		return d
	}
	if !knownCategory(req.Category) {
		d.Reason = ReasonUnknownCategory
		return d
	}
	if req.IsSelf() {
		d.Allowed = true
		d.Reason = ReasonSelfAccess
		return d
	}

	if link == nil || link.SubjectID != req.SubjectID || link.CaregiverID != req.RequesterID {
		d.Reason = ReasonNoLink
		return d
	}
	if !link.Active() {
		d.Reason = ReasonLinkInactive
		return d
	}
	if !link.Permissions.Allows(req.Category) {
		d.Reason = ReasonCategoryDenied
		return d
	}

	if req.Action == models.ActionWrite || req.Action == models.ActionDelete {
		switch caregiverWrites[req.Category] {
		case writeByPermission:
		case writeByGrant:
			if !link.HasWriteGrant(req.Category) {
				d.Reason = ReasonWriteNotGranted
				return d
			}
		default:
			d.Reason = ReasonReadOnly
			return d
		}
	}

	d.Allowed = true
	d.Reason = ReasonGranted
	return d
}

// LinkSource 关联查询（可由缓存实现；不存在时返回 nil, nil）
type LinkSource interface {
	GetLink(ctx context.Context, subjectID, caregiverID string) (*models.CareCircleLink, error)
}

// Checker 权限模型
type Checker struct {
	links LinkSource
}

// NewChecker 创建权限检查器
func NewChecker(links LinkSource) *Checker {
	return &Checker{links: links}
}

func (c *Checker) lookup(ctx context.Context, req Request) (*models.CareCircleLink, error) {
	if req.IsSelf() || req.RequesterID == "" || req.SubjectID == "" {
		return nil, nil
	}
	link, err := c.links.GetLink(ctx, req.SubjectID, req.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load care circle link: %w", err)
	}
	return link, nil
}

// CheckPermission 检查单个类别
func (c *Checker) CheckPermission(
	ctx context.Context,
	requesterID string,
	role models.Role,
	subjectID string,
	category models.Category,
	action models.Action,
) (Decision, error) {
	req := Request{
		RequesterID: requesterID,
		Role:        role,
		SubjectID:   subjectID,
		Category:    category,
		Action:      action,
	}
	link, err := c.lookup(ctx, req)
	if err != nil {
		return Decision{Request: req}, err
	}
	return Evaluate(link, req), nil
}

// CheckMultiplePermissions 一次查询关联，对所有类别逐个判定（不会因拒绝提前返回）
func (c *Checker) CheckMultiplePermissions(
	ctx context.Context,
	requesterID string,
	role models.Role,
	subjectID string,
	categories []models.Category,
	action models.Action,
) (map[models.Category]Decision, error) {
	base := Request{
		RequesterID: requesterID,
		Role:        role,
		SubjectID:   subjectID,
		Action:      action,
	}
	link, err := c.lookup(ctx, base)
	if err != nil {
		return nil, err
	}

	result := make(map[models.Category]Decision, len(categories))
	for _, category := range categories {
		req := base
		req.Category = category
		result[category] = Evaluate(link, req)
	}
	return result, nil
}

// GetEffectivePermissions 返回护理人对受监护人的有效权限；没有有效关联时返回 nil
func (c *Checker) GetEffectivePermissions(ctx context.Context, caregiverID, subjectID string) (*models.PermissionSet, error) {
	link, err := c.links.GetLink(ctx, subjectID, caregiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to load care circle link: %w", err)
	}
	if !link.Active() {
		return nil, nil
	}
	perms := link.Permissions
	return &perms, nil
}
