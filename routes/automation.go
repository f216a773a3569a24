package routes

import (
	"encoding/json"

	"github.com/kataras/iris/v12"
	"gorm.io/datatypes"

	"hostpilot-server/models"
	"hostpilot-server/services"
	"hostpilot-server/storage"
	"hostpilot-server/utils"
)

type CreateTemplateInput struct {
	OrganizationID uint   `json:"organizationID" validate:"required"`
	PropertyID     *uint  `json:"propertyID"`
	Name           string `json:"name" validate:"required,lt=128"`
	Subject        string `json:"subject" validate:"lt=256"`
	Headline       string `json:"headline" validate:"lt=256"`
	Content        string `json:"content" validate:"required"`
	TemplateType   string `json:"templateType" validate:"omitempty,oneof=email message"`
}

func CreateTemplate(ctx iris.Context) {
	var req CreateTemplateInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	template := models.Template{
		OrganizationID: req.OrganizationID,
		PropertyID:     req.PropertyID,
		Name:           req.Name,
		Subject:        req.Subject,
		Headline:       req.Headline,
		Content:        req.Content,
		TemplateType:   req.TemplateType,
	}
	if template.TemplateType == "" {
		template.TemplateType = models.TemplateEmail
	}
	if err := storage.DB.Create(&template).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(template)
}

func ListTemplates(ctx iris.Context) {
	orgID, err := ctx.URLParamInt("organizationID")
	if err != nil || orgID <= 0 {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}
	var templates []models.Template
	if err := storage.DB.Where("organization_id = ?", orgID).Order("id").Find(&templates).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(templates)
}

type CreateAutomationInput struct {
	OrganizationID   uint     `json:"organizationID" validate:"required"`
	TemplateID       *uint    `json:"templateID"`
	Event            string   `json:"event" validate:"required,oneof=booking cancellation check_in check_out message change"`
	DaysDelta        int      `json:"daysDelta"`
	Time             string   `json:"time" validate:"required,len=5"`
	Method           string   `json:"method" validate:"omitempty,oneof=email sms message auto"`
	RecipientType    string   `json:"recipientType" validate:"omitempty,oneof=guest email"`
	RecipientAddress string   `json:"recipientAddress" validate:"omitempty,email"`
	CCAddress        []string `json:"ccAddress" validate:"omitempty,dive,email"`
	BCCAddress       []string `json:"bccAddress" validate:"omitempty,dive,email"`
}

func CreateAutomation(ctx iris.Context) {
	var req CreateAutomationInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	automation := models.ReservationAutomation{
		OrganizationID:   req.OrganizationID,
		TemplateID:       req.TemplateID,
		Event:            req.Event,
		DaysDelta:        req.DaysDelta,
		Time:             req.Time,
		Method:           req.Method,
		RecipientType:    req.RecipientType,
		RecipientAddress: req.RecipientAddress,
	}
	if automation.Method == "" {
		automation.Method = models.MethodAuto
	}
	if automation.RecipientType == "" {
		automation.RecipientType = models.RecipientGuest
	}
	if len(req.CCAddress) > 0 {
		automation.CCAddress = mustJSON(req.CCAddress)
	}
	if len(req.BCCAddress) > 0 {
		automation.BCCAddress = mustJSON(req.BCCAddress)
	}
	if err := storage.DB.Create(&automation).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(automation)
}

func ListAutomations(ctx iris.Context) {
	orgID, err := ctx.URLParamInt("organizationID")
	if err != nil || orgID <= 0 {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}
	var automations []models.ReservationAutomation
	err = storage.DB.Preload("Template").
		Where("organization_id = ?", orgID).Order("id").Find(&automations).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(automations)
}

type ToggleAutomationInput struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

func ToggleAutomation(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}
	var req ToggleAutomationInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	result := storage.DB.Model(&models.ReservationAutomation{}).
		Where("id = ?", id).Update("is_active", *req.IsActive)
	if result.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if result.RowsAffected == 0 {
		utils.CreateNotFound(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

type RegisterForwardingInput struct {
	OrganizationID uint `json:"organizationID" validate:"required"`
}

// RegisterForwardingEmail mints a forwarding address for the organization
// and audits the allocation.
func RegisterForwardingEmail(ctx iris.Context) {
	var req RegisterForwardingInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	registry := services.NewForwardingRegistry()
	forwarding, err := registry.Register(req.OrganizationID)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.Audit(ctx, "forwarding.register", "forwarding_email", forwarding.ID, nil, forwarding)
	ctx.JSON(iris.Map{
		"forwardingEmail": forwarding,
		"address":         forwarding.Address(),
	})
}

func ListForwardingEmails(ctx iris.Context) {
	orgID, err := ctx.URLParamInt("organizationID")
	if err != nil || orgID <= 0 {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}
	registry := services.NewForwardingRegistry()
	addresses, err := registry.List(uint(orgID))
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	out := make([]iris.Map, 0, len(addresses))
	for i := range addresses {
		out = append(out, iris.Map{
			"forwardingEmail": addresses[i],
			"address":         addresses[i].Address(),
		})
	}
	ctx.JSON(out)
}

type ToggleForwardingInput struct {
	OrganizationID uint  `json:"organizationID" validate:"required"`
	Enabled        *bool `json:"enabled" validate:"required"`
}

func ToggleForwardingEmail(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}
	var req ToggleForwardingInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	registry := services.NewForwardingRegistry()
	if err := registry.SetEnabled(req.OrganizationID, id, *req.Enabled); err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

func mustJSON(value interface{}) datatypes.JSON {
	out, _ := json.Marshal(value)
	return datatypes.JSON(out)
}
