package config

import (
	"net/http"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	amqp "github.com/rabbitmq/amqp091-go"
)

// HealthChecker reports dependency status. A nil database means trips are kept
// in memory; a nil AMQP connection means event publishing is disabled.
type HealthChecker struct {
	db       *sqlx.DB
	amqpConn *amqp.Connection
	mqtt     mqtt.Client
}

func NewHealthChecker(db *sqlx.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client) *HealthChecker {
	return &HealthChecker{db: db, amqpConn: amqpConn, mqtt: mqttClient}
}

func (h *HealthChecker) Register(r gin.IRoutes) {
	r.GET("/healthz", h.Handle)
}

func (h *HealthChecker) Handle(c *gin.Context) {
	status := http.StatusOK
	deps := gin.H{}

	switch {
	case h.db == nil:
		deps["storage"] = gin.H{"status": "up", "backend": "memory"}
	case h.db.PingContext(c.Request.Context()) != nil:
		deps["storage"] = gin.H{"status": "down", "backend": "postgres"}
		status = http.StatusServiceUnavailable
	default:
		deps["storage"] = gin.H{"status": "up", "backend": "postgres"}
	}

	switch {
	case h.amqpConn == nil:
		deps["rabbitmq"] = gin.H{"status": "disabled"}
	case h.amqpConn.IsClosed():
		deps["rabbitmq"] = gin.H{"status": "down", "error": "connection closed"}
		status = http.StatusServiceUnavailable
	default:
		deps["rabbitmq"] = gin.H{"status": "up"}
	}

	if h.mqtt == nil || !h.mqtt.IsConnected() {
		deps["mqtt"] = gin.H{"status": "down", "error": "not connected"}
		status = http.StatusServiceUnavailable
	} else {
		deps["mqtt"] = gin.H{"status": "up"}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":       overall,
		"dependencies": deps,
	})
}
