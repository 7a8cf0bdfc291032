package tgcore

// SendMessage builds a Request for the sendMessage method.
func (b *Bot) SendMessage(chatID ChatIDHash, text string) Request[Message] {
	return NewRequest[Message](b, &SendMessage{ChatID: chatID, Text: text})
}

// SendPhoto builds a Request for the sendPhoto method.
func (b *Bot) SendPhoto(chatID ChatIDHash, photo InputFile) Request[Message] {
	return NewRequest[Message](b, &SendPhoto{ChatID: chatID, Photo: photo})
}

// EditMessageText builds a Request for the editMessageText method.
func (b *Bot) EditMessageText(chatID ChatIDHash, messageID int64, text string) Request[Message] {
	return NewRequest[Message](b, &EditMessageText{ChatID: chatID, MessageID: messageID, Text: text})
}

// EditMessageTextInline builds a Request for editing a message sent via an
// inline query result.
func (b *Bot) EditMessageTextInline(inlineMessageID, text string) Request[bool] {
	return NewRequest[bool](b, &EditMessageTextInline{InlineMessageID: inlineMessageID, Text: text})
}

// EditMessageMedia builds a Request for the editMessageMedia method.
func (b *Bot) EditMessageMedia(chatID ChatIDHash, messageID int64, media InputFile) Request[Message] {
	return NewRequest[Message](b, &EditMessageMedia{ChatID: chatID, MessageID: messageID, Media: media})
}

// GetChat builds a Request for the getChat method.
func (b *Bot) GetChat(chatID ChatIDHash) Request[Chat] {
	return NewRequest[Chat](b, &GetChat{ChatID: chatID})
}

// GetUpdates builds a Request for the getUpdates method. Most callers
// should use the polling package rather than calling this directly.
func (b *Bot) GetUpdates(offset, limit, timeout int32, allowed []string) Request[[]Update] {
	return NewRequest[[]Update](b, &GetUpdates{
		Offset:         offset,
		Limit:          limit,
		Timeout:        timeout,
		AllowedUpdates: allowed,
	})
}

// GetMe builds a Request for the getMe method.
func (b *Bot) GetMe() Request[User] {
	return NewRequest[User](b, &GetMe{})
}

// DeleteWebhook builds a Request for the deleteWebhook method.
func (b *Bot) DeleteWebhook(dropPendingUpdates bool) Request[bool] {
	return NewRequest[bool](b, &DeleteWebhook{DropPendingUpdates: dropPendingUpdates})
}

// GetWebhookInfo builds a Request for the getWebhookInfo method.
func (b *Bot) GetWebhookInfo() Request[WebhookInfo] {
	return NewRequest[WebhookInfo](b, &GetWebhookInfo{})
}
