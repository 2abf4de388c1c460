package whatsapp

import (
	"fmt"
	"time"
)

// Message templates mirror what the mobile app's users already receive,
// so the wording stays in pt-BR.

func VerificationCodeMessage(clientName, serviceName, price string, startTime time.Time, code string) string {
	return fmt.Sprintf(
		"🎉 *Código de Verificação*\n\n"+
			"Olá %s!\n\n"+
			"Seu código de verificação para o agendamento:\n\n"+
			"📅 *Data:* %s\n"+
			"💇 *Serviço:* %s\n"+
			"💰 *Valor:* R$ %s\n\n"+
			"🔐 *Código:* %s\n\n"+
			"Digite este código no aplicativo para confirmar.\n\n"+
			"Obrigado! 🌟",
		clientName, formatDateTime(startTime), serviceName, price, code)
}

func ClientConfirmationMessage(clientName string, startTime time.Time) string {
	return fmt.Sprintf(
		"✅ *Agendamento Verificado com Sucesso!*\n\n"+
			"Olá %s!\n\n"+
			"Seu agendamento foi confirmado e está aguardando o dia:\n\n"+
			"📅 *Data:* %s\n"+
			"🕐 *Horário:* %s\n\n"+
			"Nos vemos em breve! 🎉",
		clientName, formatDate(startTime), formatTime(startTime))
}

func ProfessionalConfirmationMessage(clientName, clientPhone, serviceName, price string, startTime time.Time) string {
	if clientPhone == "" {
		clientPhone = "Não informado"
	}
	return fmt.Sprintf(
		"✅ *Agendamento Confirmado!*\n\n"+
			"📅 *Data:* %s\n"+
			"💇 *Serviço:* %s\n"+
			"👤 *Cliente:* %s\n"+
			"📞 *Telefone:* %s\n"+
			"💰 *Valor:* R$ %s\n\n"+
			"O cliente confirmou o agendamento! 🎉",
		formatDateTime(startTime), serviceName, clientName, clientPhone, price)
}

func formatDateTime(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}

func formatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

func formatTime(t time.Time) string {
	return t.Format("15:04")
}
