package notify

import "html/template"

const layoutOpen = `<div style="font-family: Arial, sans-serif; max-width: 640px; margin: auto; padding: 20px; background-color: #f7f7f7; border-radius: 10px;">`
const layoutClose = `</div>`

var resetTmpl = template.Must(template.New("reset").Parse(layoutOpen + `
<h2 style="color: #333; text-align: center;">Password Reset Request</h2>
<p style="color: #555;">We received a request to reset your password. Use the button below within the next hour:</p>
<div style="text-align: center; margin: 20px 0;">
  <a href="{{.Link}}" style="padding: 10px 20px; background-color: #007bff; color: #fff; text-decoration: none; border-radius: 5px;">Reset Password</a>
</div>
<p style="color: #999; font-size: 12px; text-align: center;">If you did not request this, please ignore this email.</p>
` + layoutClose))

var verifyTmpl = template.Must(template.New("verify").Parse(layoutOpen + `
<h2 style="color: #333; text-align: center;">Verify Your Email</h2>
<p style="color: #555;">Thanks for signing up! Use the following code to verify your email address:</p>
<div style="text-align: center; margin: 20px 0;">
  <span style="display: inline-block; padding: 10px 20px; background-color: #007bff; color: #fff; border-radius: 5px; font-size: 18px;">{{.Code}}</span>
</div>
` + layoutClose))

var welcomeTmpl = template.Must(template.New("welcome").Parse(layoutOpen + `
<h2 style="color: #333; text-align: center;">Welcome to Our Store, {{.Name}}!</h2>
<p style="color: #555;">We're thrilled to have you on board.</p>
` + layoutClose))

var orderTmpl = template.Must(template.New("order").Parse(layoutOpen + `
<h2 style="color: #333; text-align: center;">Order Confirmation</h2>
<p style="color: #555; text-align: center;">Thank you for your purchase! Your order has been confirmed.</p>
<p style="color: #555;"><strong>Order ID:</strong> {{.OrderNumber}}<br><strong>Payment ID:</strong> {{.PaymentID}}</p>
<ul style="list-style-type: none; padding: 0;">
{{range .Items}}  <li style="margin-bottom: 15px; padding: 10px; border-bottom: 1px solid #eee;">
    {{if .Image}}<img src="{{.Image}}" alt="{{.Name}}" style="width: 80px; height: 80px; object-fit: cover;">{{end}}
    <strong>{{.Name}}</strong><br>
    Quantity: {{.Quantity}}<br>
    Color: {{.Color}}<br>
    Price: ₹{{.Price.StringFixed 2}}
  </li>
{{end}}</ul>
<p style="color: #555;"><strong>Total Price:</strong> ₹{{.TotalPrice.StringFixed 2}}</p>
<p style="color: #555;"><strong>Delivery Address:</strong><br>{{.Street}}, {{.City}},<br>{{.State}}, {{.ZipCode}}, {{.Country}}</p>
` + layoutClose))
