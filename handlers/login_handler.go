package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/egor/portfoliorelay/database/queries"
	"github.com/egor/portfoliorelay/middleware"
)

// Login обрабатывает авторизацию админов
func (a *API) Login(c *gin.Context) {
	var credentials struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&credentials); err != nil {
		log.Printf("Login: ошибка парсинга данных для авторизации: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Printf("Login: попытка авторизации для пользователя: %s", credentials.Email)

	admin, err := a.Store.GetAdmin(credentials.Email)
	if err != nil {
		log.Printf("Login: ошибка получения администратора %s: %v", credentials.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ошибка получения данных пользователя"})
		return
	}
	if admin == nil || !admin.Active {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "неверные учетные данные"})
		return
	}
	if err := queries.VerifyPassword(credentials.Password, admin.PasswordHash); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "неверные учетные данные"})
		return
	}

	token, err := middleware.GenerateToken(admin.ID.String(), admin.Role)
	if err != nil {
		log.Printf("Login: ошибка генерации токена: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось выполнить вход"})
		return
	}

	admin.PasswordHash = ""
	log.Printf("Login: успешная авторизация администратора: %s (ID: %s)", admin.Email, admin.ID)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"admin": admin,
	})
}
