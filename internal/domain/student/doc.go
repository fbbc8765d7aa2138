// Package student содержит профиль обучающегося.
//
// Профиль - это зеркало проверенного principal от внешнего провайдера
// идентификации: ID, email, имя и роль. Пароли и токены здесь не хранятся.
// Профиль нужен для внешних ключей записей на курс и для имени
// в данных сертификата.
package student
