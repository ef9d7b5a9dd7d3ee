package telegram

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"SupportChat/internal/models"
)

// buildChatsReport собирает Excel-файл с двумя листами: сводка по чатам
// и все сообщения. Возвращает содержимое файла.
func (r *Relay) buildChatsReport() ([]byte, error) {
	chats, err := r.service.ListAll("")
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка чатов: %w", err)
	}

	f := excelize.NewFile()
	chatsSheet := "Чаты"
	index, err := f.NewSheet(chatsSheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	chatHeaders := []string{"ID", "Пользователь", "Статус", "Последняя активность", "Создан", "Непрочитанных от клиента"}
	for i, header := range chatHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(chatsSheet, cell, header)
	}

	messagesSheet := "Сообщения"
	if _, err := f.NewSheet(messagesSheet); err != nil {
		return nil, err
	}
	msgHeaders := []string{"Чат", "Время", "От", "Текст", "Прочитано"}
	for i, header := range msgHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(messagesSheet, cell, header)
	}

	msgRow := 2
	for rowIndex, chat := range chats {
		unread, errCount := r.service.UnreadFor(chat.ID, models.FromUser)
		if errCount != nil {
			unread = 0
		}
		row := rowIndex + 2
		f.SetCellValue(chatsSheet, fmt.Sprintf("A%d", row), chat.ID)
		f.SetCellValue(chatsSheet, fmt.Sprintf("B%d", row), chatDisplayName(chat))
		f.SetCellValue(chatsSheet, fmt.Sprintf("C%d", row), chat.Status)
		f.SetCellValue(chatsSheet, fmt.Sprintf("D%d", row), chat.LastMessageAt.Format("02.01.2006 15:04"))
		f.SetCellValue(chatsSheet, fmt.Sprintf("E%d", row), chat.CreatedAt.Format("02.01.2006 15:04"))
		f.SetCellValue(chatsSheet, fmt.Sprintf("F%d", row), unread)

		_, messages, errHist := r.service.History(chat.ID)
		if errHist != nil {
			continue
		}
		for _, m := range messages {
			side := "поддержка"
			if m.From == models.FromUser {
				side = "клиент"
			}
			f.SetCellValue(messagesSheet, fmt.Sprintf("A%d", msgRow), chatDisplayName(chat))
			f.SetCellValue(messagesSheet, fmt.Sprintf("B%d", msgRow), m.Timestamp.Format("02.01.2006 15:04:05"))
			f.SetCellValue(messagesSheet, fmt.Sprintf("C%d", msgRow), side)
			f.SetCellValue(messagesSheet, fmt.Sprintf("D%d", msgRow), m.Text)
			f.SetCellValue(messagesSheet, fmt.Sprintf("E%d", msgRow), m.Read)
			msgRow++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("ошибка записи Excel файла: %w", err)
	}
	return buf.Bytes(), nil
}
