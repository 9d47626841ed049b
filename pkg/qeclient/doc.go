// Package qeclient реализует WebSocket-клиент JSON-RPC протокола
// аналитического движка. Одна сессия владеет одним соединением с одним
// документом: шлёт вызовы с монотонными id, сопоставляет асинхронные
// ответы ожидающим вызовам и достаёт из обобщённых результатов типовые
// формы (листы, объекты, layout'ы, матрицы гиперкуба).
//
// Слои:
//   - кодек (codec.go) — чистая сериализация конвертов, без состояния;
//   - экстракторы (extract.go) — чтение под-форм из result, терпимое
//     к отсутствующим полям;
//   - Session (client.go, conn.go, readloop.go) — соединение, таблица
//     ожидающих вызовов, таймауты, отмена при Disconnect;
//   - фасад (api.go) — OpenDoc/Sheets/SheetObjects/Layout/Table,
//     выборки и вычисление выражений.
//
// Конкурентные вызовы на одной сессии полностью поддерживаются: каждый
// ждёт только свой ответ, порядок ответов не обязан совпадать с
// порядком запросов, корреляция — строго по id.
//
// Пример:
//
//	cfg := qeclient.Config{APIKey: key, TenantURL: "https://tenant.example.com"}
//	s := qeclient.New(cfg)
//	if err := s.Connect(ctx, "app-123"); err != nil { log.Fatal(err) }
//	defer s.Disconnect()
//
//	doc, _ := s.OpenDoc("app-123")
//	sheets, _ := doc.Sheets()
//	for _, sh := range sheets {
//		fmt.Println(sh.ID, sh.Title)
//	}
//
//	obj, _ := doc.Object("chart-1")
//	table, _ := obj.Table()
//	fmt.Println(table.Headers)
package qeclient
