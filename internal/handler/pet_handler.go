package handler

import (
	"github.com/gin-gonic/gin"

	"tikitaka-go/internal/middleware"
	"tikitaka-go/internal/service"
)

// PetHandler 提供宠物档案的查询接口。
type PetHandler struct {
	petService service.PetService
}

// NewPetHandler 创建一个新的 PetHandler 实例。
func NewPetHandler(petService service.PetService) *PetHandler {
	return &PetHandler{petService: petService}
}

// Me 返回当前会话的宠物档案。
func (h *PetHandler) Me(c *gin.Context) {
	pet, err := h.petService.GetBySession(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		writeError(c, err, msgPetNotFound)
		return
	}
	success(c, pet)
}

// Get 按 ID 返回宠物档案，分享页面使用。
func (h *PetHandler) Get(c *gin.Context) {
	pet, err := h.petService.GetByID(c.Request.Context(), c.Param("petId"))
	if err != nil {
		writeError(c, err, msgPetNotFound)
		return
	}
	success(c, pet)
}
