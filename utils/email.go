package utils

import (
	"bytes"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"
)

type EmailKind string

const (
	EmailOrderCreated     EmailKind = "order_created"
	EmailPaymentCompleted EmailKind = "payment_completed"
	EmailOrderCancelled   EmailKind = "order_cancelled"
)

// OrderEmailData dữ liệu cho template email đơn hàng
type OrderEmailData struct {
	CustomerName string
	OrderNumber  string
	TotalAmount  float64
	Currency     string
	Status       string
	Reason       string
	DetailLink   string
}

var emailSubjects = map[EmailKind]string{
	EmailOrderCreated:     "Xác nhận đơn hàng #%s",
	EmailPaymentCompleted: "Thanh toán thành công cho đơn hàng #%s",
	EmailOrderCancelled:   "Đơn hàng #%s đã bị hủy",
}

var orderEmailTemplate = template.Must(template.New("order").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <p>Xin chào {{.Data.CustomerName}},</p>
  {{if eq .Kind "payment_completed"}}
  <p>Chúng tôi đã nhận được thanh toán cho đơn hàng <b>#{{.Data.OrderNumber}}</b>.</p>
  {{else if eq .Kind "order_cancelled"}}
  <p>Đơn hàng <b>#{{.Data.OrderNumber}}</b> đã bị hủy.{{if .Data.Reason}} Lý do: {{.Data.Reason}}.{{end}}</p>
  {{else}}
  <p>Cảm ơn bạn đã đặt hàng. Đơn hàng <b>#{{.Data.OrderNumber}}</b> đã được tạo.</p>
  {{end}}
  <p>Tổng tiền: <b>{{printf "%.0f" .Data.TotalAmount}} {{.Data.Currency}}</b></p>
  <p>Trạng thái: {{.Data.Status}}</p>
  {{if .Data.DetailLink}}<p><a href="{{.Data.DetailLink}}">Xem chi tiết đơn hàng</a></p>{{end}}
</body>
</html>`))

// RenderOrderEmail trả về tiêu đề và nội dung HTML của email
func RenderOrderEmail(kind EmailKind, data OrderEmailData) (string, string, error) {
	subject, ok := emailSubjects[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown email kind %q", kind)
	}

	var body bytes.Buffer
	err := orderEmailTemplate.Execute(&body, struct {
		Kind EmailKind
		Data OrderEmailData
	}{kind, data})
	if err != nil {
		return "", "", fmt.Errorf("render email: %w", err)
	}
	return fmt.Sprintf(subject, data.OrderNumber), body.String(), nil
}

// Mailer gửi email qua SMTP
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// SendOrderEmail gửi email đồng bộ, người gọi tự quyết định chạy async
func (m *Mailer) SendOrderEmail(to string, kind EmailKind, data OrderEmailData) error {
	subject, body, err := RenderOrderEmail(kind, data)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}
