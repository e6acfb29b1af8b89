package handlers

import (
	"net/http"
	"strings"

	"article-renderer/pkg/config"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// AuthRequired guards routes behind a GitHub login when OAuth is configured.
func AuthRequired(c *gin.Context) {
	if !config.AuthEnabled() {
		c.Next()
		return
	}
	session := sessions.Default(c)
	token := session.Get("access_token")
	if token == nil {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		} else {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
		}
		return
	}
	c.Next()
}

func GithubLogin(c *gin.Context) {
	if !config.AuthEnabled() {
		c.Redirect(http.StatusFound, "/")
		return
	}
	state := uuid.NewString()
	session := sessions.Default(c)
	session.Set("oauth_state", state)
	session.Save()

	url := config.OauthConf.AuthCodeURL(state, oauth2.AccessTypeOnline)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

func AuthCallback(c *gin.Context) {
	if !config.AuthEnabled() {
		c.Redirect(http.StatusFound, "/")
		return
	}
	session := sessions.Default(c)
	if want, _ := session.Get("oauth_state").(string); want == "" || want != c.Query("state") {
		c.String(http.StatusBadRequest, "OAuth state mismatch")
		return
	}

	token, err := config.OauthConf.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		c.String(http.StatusInternalServerError, "OAuth Exchange Failed")
		return
	}

	session.Delete("oauth_state")
	session.Set("access_token", token.AccessToken)
	session.Save()

	c.Redirect(http.StatusFound, "/")
}

func Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.Redirect(http.StatusFound, "/login")
}
