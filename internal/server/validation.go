package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ufowatch/internal/generated"
)

func init() {
	// トリガー画像は検証せずにそのまま受け取る
	openapi3filter.RegisterBodyDecoder("image/jpeg", openapi3filter.FileBodyDecoder)
}

// RequestValidator は api/openapi.yaml の定義でリクエストを検証する
type RequestValidator struct {
	router routers.Router
	logger *logrus.Entry
}

// NewRequestValidator は埋め込まれたAPI定義から RequestValidator を作成する
func NewRequestValidator(logger *logrus.Entry) (*RequestValidator, error) {
	swagger, err := generated.GetSwagger()
	if err != nil {
		return nil, fmt.Errorf("API定義の読み込みに失敗: %w", err)
	}

	// 待ち受けるホスト名に関係なくパスだけで照合する
	swagger.Servers = nil

	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		return nil, fmt.Errorf("API定義からルーターを作成できません: %w", err)
	}

	return &RequestValidator{router: router, logger: logger}, nil
}

// Handler は定義に合わないリクエストを400で拒否するミドルウェアを返す
// 認証は AuthMiddleware が行うので、ここではセキュリティ要件を検証しない。
func (v *RequestValidator) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, pathParams, err := v.router.FindRoute(c.Request)
		if err != nil {
			// 定義にないパスやメソッドはGinのルーティングに任せる
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			v.logger.WithError(err).WithField("path", c.Request.URL.Path).Debug("リクエストの検証に失敗")
			abortWithError(c, http.StatusBadRequest, "invalid_request", firstLine(err.Error()))
			return
		}

		c.Next()
	}
}

// firstLine はスキーマの詳細を除いたエラーの1行目を返す
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
