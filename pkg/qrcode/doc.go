// Package qrcode renders capture links as QR images so a designer can show the
// link on screen and the client can open it with a phone camera.
package qrcode
