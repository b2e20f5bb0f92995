package server

import (
	"net/http"
)

// TestPageHandler serves an HTML page that joins a room over SSE and posts
// messages through the HTTP API.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(testPage))
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>roomchat test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        #messageInput { width: 300px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>roomchat test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="roomInput" placeholder="room" value="lobby">
        <input type="text" id="userInput" placeholder="username">
        <button id="joinButton" onclick="toggleJoin()">Join</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>
    <div id="rooms"></div>

    <script>
        let source = null;
        const messagesDiv = document.getElementById('messages');
        const roomsDiv = document.getElementById('rooms');
        const roomInput = document.getElementById('roomInput');
        const userInput = document.getElementById('userInput');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const joinButton = document.getElementById('joinButton');
        const statusDiv = document.getElementById('status');

        function addLine(text, color) {
            const line = document.createElement('div');
            line.style.margin = '5px 0';
            line.style.color = color;
            line.textContent = text;
            messagesDiv.appendChild(line);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(joined) {
            statusDiv.textContent = joined ? 'Joined ' + roomInput.value : 'Disconnected';
            statusDiv.className = 'status ' + (joined ? 'connected' : 'disconnected');
            messageInput.disabled = !joined;
            sendButton.disabled = !joined;
            roomInput.disabled = joined;
            userInput.disabled = joined;
            joinButton.textContent = joined ? 'Leave' : 'Join';
        }

        function handleEvent(evt) {
            switch (evt.type) {
            case 'chat-message':
                addLine(evt.data.sender + ': ' + evt.data.content, 'black');
                break;
            case 'user-joined':
                addLine(evt.data.username + ' joined', 'green');
                break;
            case 'user-left':
                addLine(evt.data.username + ' left', 'gray');
                break;
            case 'rooms-list':
                roomsDiv.textContent = 'Rooms: ' + evt.data.rooms
                    .map(r => r.name + ' (' + r.participantCount + ')').join(', ');
                break;
            }
        }

        function join() {
            const params = new URLSearchParams({ room: roomInput.value, username: userInput.value });
            source = new EventSource('/api/events?' + params.toString());
            source.onopen = () => updateStatus(true);
            source.onmessage = (e) => handleEvent(JSON.parse(e.data));
            source.onerror = () => {
                addLine('Connection lost', 'red');
                leave();
            };
        }

        function leave() {
            if (source) {
                source.close();
                source = null;
            }
            updateStatus(false);
        }

        function toggleJoin() {
            if (source) {
                leave();
            } else {
                join();
            }
        }

        async function sendMessage() {
            const content = messageInput.value.trim();
            if (!content || !source) {
                return;
            }
            const resp = await fetch('/api/messages', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({ room: roomInput.value, sender: userInput.value, content: content })
            });
            if (!resp.ok) {
                const body = await resp.json();
                addLine('Error: ' + body.message, 'red');
                return;
            }
            messageInput.value = '';
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
