package main

const htmlContent = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Stake-out</title>
    <style>
        body { margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #101418; color: #eee; height: 100vh; display: flex; flex-direction: column; overflow: hidden; }

        .tabs { display: flex; background: #182028; border-bottom: 1px solid #2c3a46; height: 40px; align-items: flex-end; padding-left: 8px; flex-shrink: 0; }
        .tab { padding: 8px 16px; cursor: pointer; font-size: 13px; color: #8a99a6; border-top-left-radius: 6px; border-top-right-radius: 6px; margin-right: 2px; user-select: none; }
        .tab.active { background: #101418; color: #fff; border: 1px solid #2c3a46; border-bottom-color: #101418; margin-bottom: -1px; }
        .tab.disabled { pointer-events: none; opacity: 0.5; }

        .content { flex: 1; position: relative; display: flex; }
        .tab-content { display: none; width: 100%; height: 100%; }
        .tab-content.active { display: block; }

        .terminal-container { background: #07090b; color: #ccc; font-family: 'Consolas', 'Monaco', 'Courier New', monospace; font-size: 12px; padding: 12px; overflow-y: auto; white-space: pre-wrap; word-wrap: break-word; height: 100%; box-sizing: border-box; }

        iframe { width: 100%; height: 100%; border: none; background: #101418; }

        #terminal-output .info { color: #4caf50; }
        #terminal-output .warn { color: #ff9800; }
        #terminal-output .err { color: #f44336; }
        #terminal-output .sys { color: #2196f3; font-weight: bold; }
    </style>
</head>
<body>
    <div class="tabs">
        <div class="tab disabled" id="tab-app" onclick="switchTab('app')">MAP</div>
        <div class="tab active" id="tab-term" onclick="switchTab('term')">TERMINAL</div>
    </div>

    <div class="content">
        <div id="content-app" class="tab-content">
            <iframe id="frame-app"></iframe>
        </div>
        <div id="content-term" class="tab-content active">
            <div id="terminal-output" class="terminal-container"></div>
        </div>
    </div>

    <script>
        const output = document.getElementById('terminal-output');
        const tabTerm = document.getElementById('tab-term');

        function switchTab(id) {
            document.querySelectorAll('.tab').forEach(t => t.classList.remove('active'));
            document.querySelectorAll('.tab-content').forEach(c => c.classList.remove('active'));
            document.getElementById('tab-' + id).classList.add('active');
            document.getElementById('content-' + id).classList.add('active');
        }

        function appendLog(text) {
            const line = document.createElement('div');
            line.innerText = text;
            if (text.startsWith('>')) line.className = 'sys';
            else if (text.includes('ERROR') || text.includes('FAIL')) line.className = 'err';
            else if (text.includes('WARN')) line.className = 'warn';
            else if (text.includes('INFO')) line.className = 'info';
            output.appendChild(line);
            output.scrollTop = output.scrollHeight;
        }

        window.setTerminalTitle = function(name) {
            tabTerm.innerText = name.toUpperCase();
        };

        window.enableApp = function(url) {
            document.getElementById('frame-app').src = url;
            document.getElementById('tab-app').classList.remove('disabled');
            switchTab('app');
        };

        window.addLogLine = function(line) {
            appendLog(line);
        };

        document.addEventListener('contextmenu', event => event.preventDefault());
        document.addEventListener('keydown', function(event) {
            if (event.key === 'F5' || (event.ctrlKey && event.key === 'r')) {
                event.preventDefault();
            }
        });
    </script>
</body>
</html>
`
