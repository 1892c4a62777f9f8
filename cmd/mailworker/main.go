package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/studycircle/studycircle-api/config"
	"github.com/studycircle/studycircle-api/internal/infrastructure/mailqueue"
	"github.com/studycircle/studycircle-api/pkg/mailer"
	"github.com/studycircle/studycircle-api/pkg/mailer/templates"
)

func main() {
	cfg := config.Load()
	if !cfg.MailSendEnabled {
		log.Println("MAIL_SEND_ENABLED=false; mail worker disabled (no real emails will be sent)")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQMailQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		log.Fatal("Mailgun not configured")
	}

	queue, err := mailqueue.Dial(cfg.RabbitMQURL, cfg.RabbitMQMailQueue)
	if err != nil {
		log.Fatalf("amqp dial: %v", err)
	}
	defer queue.Close()

	msgs, err := queue.Consume()
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
	ctx := context.Background()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for msg := range msgs {
			var job mailer.EmailJob
			if err := json.Unmarshal(msg.Body, &job); err != nil {
				log.Printf("bad message: %v", err)
				_ = msg.Nack(false, false)
				continue
			}
			if job.To == "" || job.Subject == "" {
				log.Printf("incomplete job, dropping")
				_ = msg.Nack(false, false)
				continue
			}

			html := ""
			if job.Template == templates.ActionLink {
				data := templates.ActionLinkData{
					AppName:   cfg.AppName,
					Message:   stringFrom(job.Data, "message"),
					ActionURL: stringFrom(job.Data, "action_url"),
					Nickname:  stringFrom(job.Data, "nickname"),
					Label:     stringFrom(job.Data, "label"),
				}
				if data.AppName == "" {
					data.AppName = stringFrom(job.Data, "app_name")
				}
				if data.Label == "" {
					data.Label = "Open link"
				}
				rendered, rerr := templates.RenderHTML(templates.ActionLink, data)
				if rerr != nil {
					log.Printf("render failed: %v", rerr)
					_ = msg.Nack(false, false)
					continue
				}
				html = rendered
			}

			c, cancel := context.WithTimeout(ctx, 15*time.Second)
			if err := mg.Send(c, job.To, job.Subject, job.Text, html); err != nil {
				cancel()
				log.Printf("send to %s failed: %v", job.To, err)
				_ = msg.Nack(false, true)
				continue
			}
			cancel()
			_ = msg.Ack(false)
		}
		close(done)
	}()

	log.Printf("mail worker listening on queue=%s", cfg.RabbitMQMailQueue)
	<-stop
	log.Printf("shutting down...")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func stringFrom(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}
